package stage

import "strings"

// Health summarizes whether a handler's collaborators are ready.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy constructs a ready Health record.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy constructs an unhealthy Health record with context detail.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}

// Requirement is one named precondition of a handler.
type Requirement struct {
	Detail string
	Met    bool
}

// Require folds requirements into one Health; unmet details are joined.
func Require(name string, reqs ...Requirement) Health {
	var missing []string
	for _, req := range reqs {
		if !req.Met {
			missing = append(missing, req.Detail)
		}
	}
	if len(missing) > 0 {
		return Unhealthy(name, strings.Join(missing, "; "))
	}
	return Healthy(name)
}
