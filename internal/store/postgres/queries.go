package postgres

// Pipelines and their triggers in one pass. Trigger columns are NULL for
// pipelines that have no triggers at all; those pipelines still appear in
// the snapshot so operators can see them, they just yield no candidates.
const queryGetPipelines = `
SELECT
	p.id,
	p.name,
	p.application,
	p.disabled,
	t.id,
	t.type,
	t.enabled,
	t.cron_expression
FROM pipelines p
LEFT JOIN triggers t ON t.pipeline_id = p.id
ORDER BY p.id, t.id
`
