package cron

import (
	"context"
	"fmt"
	"strings"
)

// Job is one unit of periodic work. Run should be safe to repeat: a cycle
// that fails is simply tried again on the next tick.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry is an ordered set of jobs keyed by name. The first job registered
// under a name wins.
type Registry struct {
	jobs  []Job
	index map[string]int
}

func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{index: map[string]int{}}
	for _, job := range jobs {
		r.Register(job)
	}
	return r
}

func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	if _, taken := r.index[job.Name()]; taken {
		return
	}
	r.index[job.Name()] = len(r.jobs)
	r.jobs = append(r.jobs, job)
}

// Select returns a registry holding only the named jobs, in registration
// order. An empty selection keeps everything; an unknown name is an error.
func (r *Registry) Select(names []string) (*Registry, error) {
	wanted := map[string]bool{}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := r.index[name]; !ok {
			return nil, fmt.Errorf("unknown cron job %q (registered: %s)", name, strings.Join(r.Names(), ", "))
		}
		wanted[name] = true
	}
	if len(wanted) == 0 {
		return r, nil
	}
	out := NewRegistry()
	for _, job := range r.jobs {
		if wanted[job.Name()] {
			out.Register(job)
		}
	}
	return out, nil
}

func (r *Registry) Names() []string {
	names := make([]string, len(r.jobs))
	for i, job := range r.jobs {
		names[i] = job.Name()
	}
	return names
}

// Jobs returns a copy of the registered jobs in registration order.
func (r *Registry) Jobs() []Job {
	return append([]Job(nil), r.jobs...)
}
