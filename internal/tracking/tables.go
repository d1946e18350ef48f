package tracking

import (
	"fmt"

	"jobboard-workers/internal/status"
)

// table holds the per-kind SQL names. Both tracked entities share one shape,
// so everything below the service is driven by this descriptor.
type table struct {
	kind      status.Kind
	entity    string
	history   string
	parentCol string
	lockSQL   string
}

var tables = map[status.Kind]table{
	status.KindApplication: {
		kind:      status.KindApplication,
		entity:    "job_applications",
		history:   "job_application_status_histories",
		parentCol: "job_id",
		lockSQL: `
		SELECT t.id, t.job_id, t.candidate_profile_id, t.status, t.created_at, t.updated_at,
		       j.title, c.name, cp.user_id
		FROM job_applications t
		JOIN jobs j ON j.id = t.job_id
		JOIN companies c ON c.id = j.company_id
		JOIN candidate_profiles cp ON cp.id = t.candidate_profile_id
		WHERE t.id = $1`,
	},
	status.KindJobPool: {
		kind:      status.KindJobPool,
		entity:    "candidate_job_pools",
		history:   "job_pool_status_histories",
		parentCol: "job_pool_id",
		lockSQL: `
		SELECT t.id, t.job_pool_id, t.candidate_profile_id, t.status, t.created_at, t.updated_at,
		       p.name, c.name, cp.user_id
		FROM candidate_job_pools t
		JOIN job_pools p ON p.id = t.job_pool_id
		JOIN companies c ON c.id = p.company_id
		JOIN candidate_profiles cp ON cp.id = t.candidate_profile_id
		WHERE t.id = $1`,
	},
}

func tableFor(kind status.Kind) (table, error) {
	t, ok := tables[kind]
	if !ok {
		return table{}, fmt.Errorf("%w: %q", status.ErrUnknownKind, kind)
	}
	return t, nil
}
