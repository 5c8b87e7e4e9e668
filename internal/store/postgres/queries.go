package postgres

const queryInsertItem = `
INSERT INTO calendar_items (
    id, user_id, item_type, title, description,
    start_time, end_time, estimated_duration, progress_percent,
    recurrence_rule, location, status, completed_at,
    source_type, source_id, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
`

const queryGetItem = `
SELECT
    id, user_id, item_type, title, description,
    start_time, end_time, estimated_duration, progress_percent,
    recurrence_rule, location, status, completed_at,
    source_type, source_id, created_at, updated_at
FROM calendar_items
WHERE id = $1
`

const queryListItems = `
SELECT
    id, user_id, item_type, title, description,
    start_time, end_time, estimated_duration, progress_percent,
    recurrence_rule, location, status, completed_at,
    source_type, source_id, created_at, updated_at
FROM calendar_items
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`

const queryUpdateItem = `
UPDATE calendar_items
SET item_type = $2, title = $3, description = $4,
    start_time = $5, end_time = $6, estimated_duration = $7,
    progress_percent = $8, recurrence_rule = $9, location = $10,
    status = $11, source_type = $12, source_id = $13, updated_at = $14
WHERE id = $1
`

const queryDeleteItem = `
WITH deleted_executions AS (
    DELETE FROM trigger_executions
    WHERE trigger_id IN (SELECT id FROM triggers WHERE calendar_item_id = $1)
),
deleted_triggers AS (
    DELETE FROM triggers WHERE calendar_item_id = $1
)
DELETE FROM calendar_items WHERE id = $1
RETURNING id`

const queryCompleteItem = `
UPDATE calendar_items
SET status = 'completed', completed_at = $2, progress_percent = 100, updated_at = $2
WHERE id = $1
  AND status <> 'completed'
RETURNING
    id, user_id, item_type, title, description,
    start_time, end_time, estimated_duration, progress_percent,
    recurrence_rule, location, status, completed_at,
    source_type, source_id, created_at, updated_at
`

const queryDeactivateItemTriggers = `
UPDATE triggers
SET is_active = false
WHERE calendar_item_id = $1
  AND is_active = true
RETURNING id
`

const queryInsertTrigger = `
INSERT INTO triggers (id, calendar_item_id, trigger_type, trigger_config, last_fired_at, is_active, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`

const queryGetTrigger = `
SELECT id, calendar_item_id, trigger_type, trigger_config, last_fired_at, is_active, created_at
FROM triggers
WHERE id = $1
`

const queryListItemTriggers = `
SELECT id, calendar_item_id, trigger_type, trigger_config, last_fired_at, is_active, created_at
FROM triggers
WHERE calendar_item_id = $1
ORDER BY created_at ASC
`

const queryListActiveTimeTriggers = `
SELECT id, calendar_item_id, trigger_type, trigger_config, last_fired_at, is_active, created_at
FROM triggers
WHERE trigger_type = 'time'
  AND is_active = true
ORDER BY created_at ASC
`

const queryDeleteTrigger = `
WITH deleted_executions AS (
    DELETE FROM trigger_executions WHERE trigger_id = $1
)
DELETE FROM triggers WHERE id = $1
RETURNING id`

// The guard re-checks the state the sweep read: still active, and not fired
// since. A concurrent one-shot timer or second instance loses the race and
// sees zero rows.
const queryMarkFired = `
UPDATE triggers
SET last_fired_at = $2, is_active = $3
WHERE id = $1
  AND is_active = true
  AND last_fired_at IS NOT DISTINCT FROM $4
`

const queryInsertExecution = `
INSERT INTO trigger_executions (id, trigger_id, fired_at, status, result, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
`

const queryListExecutions = `
SELECT id, trigger_id, fired_at, status, result, created_at
FROM trigger_executions
WHERE trigger_id = $1
ORDER BY fired_at DESC
LIMIT $2 OFFSET $3
`

const queryInsertEvent = `
INSERT INTO events (id, event_type, payload, occurred_at)
VALUES ($1, $2, $3, $4)
`

// Completed items must not keep active triggers. A crash between the item
// update and the trigger deactivation can leave strays; the reconciler
// repairs them in bounded batches.
const queryRepairStaleTriggers = `
WITH stale AS (
    SELECT t.id
    FROM triggers t
    JOIN calendar_items i ON t.calendar_item_id = i.id
    WHERE i.status = 'completed'
      AND t.is_active = true
    ORDER BY t.created_at ASC
    LIMIT $1
    FOR UPDATE OF t SKIP LOCKED
)
UPDATE triggers
SET is_active = false
FROM stale
WHERE triggers.id = stale.id
`

const queryInsertProgram = `
INSERT INTO degree_programs (id, user_id, name, institution, target_grade, total_credits_required, status, start_date, end_date, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

const queryGetProgram = `
SELECT id, user_id, name, institution, target_grade, total_credits_required, status, start_date, end_date, created_at
FROM degree_programs
WHERE id = $1
`

const queryListPrograms = `
SELECT id, user_id, name, institution, target_grade, total_credits_required, status, start_date, end_date, created_at
FROM degree_programs
WHERE user_id = $1
ORDER BY created_at ASC
`

const queryUpdateProgram = `
UPDATE degree_programs
SET name = $2, institution = $3, target_grade = $4, total_credits_required = $5,
    status = $6, start_date = $7, end_date = $8
WHERE id = $1
`

const queryDeleteProgram = `
WITH deleted_coursework AS (
    DELETE FROM coursework
    WHERE module_id IN (SELECT id FROM modules WHERE program_id = $1)
),
deleted_modules AS (
    DELETE FROM modules WHERE program_id = $1
)
DELETE FROM degree_programs WHERE id = $1
RETURNING id`

const queryInsertModule = `
INSERT INTO modules (id, program_id, code, name, credits, weighting, semester, academic_year, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

const queryGetModule = `
SELECT id, program_id, code, name, credits, weighting, semester, academic_year, status, created_at
FROM modules
WHERE id = $1
`

const queryListModules = `
SELECT id, program_id, code, name, credits, weighting, semester, academic_year, status, created_at
FROM modules
WHERE program_id = $1
ORDER BY created_at ASC
`

const queryUpdateModule = `
UPDATE modules
SET code = $2, name = $3, credits = $4, weighting = $5,
    semester = $6, academic_year = $7, status = $8
WHERE id = $1
`

const queryDeleteModule = `
WITH deleted_coursework AS (
    DELETE FROM coursework WHERE module_id = $1
)
DELETE FROM modules WHERE id = $1
RETURNING id`

const queryInsertCoursework = `
INSERT INTO coursework (id, module_id, name, weighting, max_marks, achieved_marks, deadline, status, feedback, submitted_at, graded_at, linked_task_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
`

const queryGetCoursework = `
SELECT id, module_id, name, weighting, max_marks, achieved_marks, deadline, status, feedback, submitted_at, graded_at, linked_task_id, created_at
FROM coursework
WHERE id = $1
`

const queryListCoursework = `
SELECT id, module_id, name, weighting, max_marks, achieved_marks, deadline, status, feedback, submitted_at, graded_at, linked_task_id, created_at
FROM coursework
WHERE module_id = $1
ORDER BY created_at ASC
`

const queryUpdateCoursework = `
UPDATE coursework
SET name = $2, weighting = $3, max_marks = $4, achieved_marks = $5,
    deadline = $6, status = $7, feedback = $8,
    submitted_at = $9, graded_at = $10, linked_task_id = $11
WHERE id = $1
`

const queryDeleteCoursework = `
DELETE FROM coursework WHERE id = $1
RETURNING id`

const queryGetCourseworkStatus = `
SELECT status FROM coursework WHERE id = $1
`

const queryMarkSubmitted = `
UPDATE coursework
SET status = 'submitted', submitted_at = $2
WHERE id = $1
  AND status NOT IN ('submitted', 'graded')
`
