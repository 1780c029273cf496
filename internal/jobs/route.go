// Package jobs resolves job handles from user input.
package jobs

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/fpang/smart-image-moderation/internal/moderation"
)

// ResultRoutePrefix is the path segment that precedes a job id on result
// page URLs, e.g. /result/{job_id}.
const ResultRoutePrefix = "/result/"

// ParseResultRoute accepts a bare job id or a result-page URL (absolute, or
// a path like /result/{job_id}) and returns the job handle. Query strings,
// fragments and a trailing slash are ignored.
func ParseResultRoute(arg string) (moderation.JobHandle, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", moderation.ErrEmptyJob
	}

	if !strings.Contains(arg, "/") {
		return moderation.JobHandle(arg), nil
	}

	u, err := url.Parse(arg)
	if err != nil {
		return "", fmt.Errorf("invalid result URL %q: %w", arg, err)
	}

	path := strings.TrimRight(u.Path, "/")
	idx := strings.LastIndex(path, ResultRoutePrefix)
	if idx < 0 {
		return "", fmt.Errorf("%q is not a result route (expected .../result/{job_id})", arg)
	}

	id, err := url.PathUnescape(path[idx+len(ResultRoutePrefix):])
	if err != nil {
		return "", fmt.Errorf("invalid job id in %q: %w", arg, err)
	}
	if strings.Contains(id, "/") {
		return "", fmt.Errorf("%q is not a result route (expected .../result/{job_id})", arg)
	}

	job := moderation.JobHandle(id)
	if job.IsZero() {
		return "", moderation.ErrEmptyJob
	}
	return job, nil
}
