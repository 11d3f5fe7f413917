package controller

import (
	"fmt"
	"sort"

	"forged/internal/profile"
)

// Resolution is a policy's answer when a request does not fit directly.
// An empty Evict list means queue-or-reject; a non-empty list is an
// eviction plan the controller executes before re-attempting admission.
type Resolution struct {
	Evict []Session
}

// Policy decides what happens when the budget or session cap is exceeded.
// Resolve is called under the controller's admission lock and must not
// block or touch the engine.
type Policy interface {
	Name() profile.SchedulerPolicy
	Resolve(req Request, reg *Registry, p profile.Profile) Resolution
}

// PolicyFor returns the strategy object for a profile's configured policy.
func PolicyFor(sp profile.SchedulerPolicy) (Policy, error) {
	switch sp {
	case profile.PolicyGuaranteedNoEvict:
		return guaranteedNoEvict{}, nil
	case profile.PolicyMaxUtilization:
		return maxUtilization{}, nil
	default:
		return nil, fmt.Errorf("unknown scheduler policy %q", sp)
	}
}

// guaranteedNoEvict never interrupts in-flight sessions; pressure always
// resolves to queue-or-reject. Appropriate for the discrete-GPU SKU where
// losing an in-flight session is unacceptable.
type guaranteedNoEvict struct{}

func (guaranteedNoEvict) Name() profile.SchedulerPolicy { return profile.PolicyGuaranteedNoEvict }

func (guaranteedNoEvict) Resolve(Request, *Registry, profile.Profile) Resolution {
	return Resolution{}
}

// maxUtilization reclaims memory from strictly lower-priority sessions,
// lowest priority first, oldest admission first. The order is total (id is
// the final tiebreak) so the same input history always yields the same
// eviction sequence.
type maxUtilization struct{}

func (maxUtilization) Name() profile.SchedulerPolicy { return profile.PolicyMaxUtilization }

func (maxUtilization) Resolve(req Request, reg *Registry, p profile.Profile) Resolution {
	candidates := reg.Active()
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if !a.AdmittedAt.Equal(b.AdmittedAt) {
			return a.AdmittedAt.Before(b.AdmittedAt)
		}
		return a.ID < b.ID
	})

	headroom := Headroom(p, reg)
	active := reg.ActiveCount()
	var plan []Session
	fits := func() bool {
		return headroom >= req.EstimatedKVBytes && active < p.MaxConcurrentSessions
	}
	for _, c := range candidates {
		if fits() {
			break
		}
		if c.Priority >= req.Priority {
			// Only strictly lower-priority sessions are evictable; beyond
			// this point every candidate ranks at least as high.
			break
		}
		plan = append(plan, c)
		headroom += c.EstimatedKVBytes
		active--
	}
	if !fits() {
		return Resolution{}
	}
	return Resolution{Evict: plan}
}
