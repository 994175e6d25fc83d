package cron

import (
	"context"
	"fmt"
)

// Job is one retention task. Run reports how many rows it removed.
type Job interface {
	Name() string
	Run(ctx context.Context) (int64, error)
}

// Registry holds jobs in registration order under unique names.
type Registry struct {
	jobs  []Job
	names map[string]struct{}
}

// NewRegistry panics on duplicate names, like MustRegister; nil jobs are skipped.
func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{names: map[string]struct{}{}}
	for _, job := range jobs {
		if err := r.Register(job); err != nil {
			panic(err)
		}
	}
	return r
}

func (r *Registry) Register(job Job) error {
	if job == nil {
		return nil
	}
	if _, dup := r.names[job.Name()]; dup {
		return fmt.Errorf("retention job %q registered twice", job.Name())
	}
	r.names[job.Name()] = struct{}{}
	r.jobs = append(r.jobs, job)
	return nil
}

// Jobs returns a copy, so callers cannot reorder the registry.
func (r *Registry) Jobs() []Job {
	return append([]Job(nil), r.jobs...)
}
