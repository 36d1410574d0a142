package apiclient

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/personaliza/api/internal/platform/textutil"
)

// Kind groups failures by how the UI should react to them.
type Kind int

const (
	KindUnknown Kind = iota
	// KindDependencyConflict means the entity is still linked to orders or products.
	KindDependencyConflict
	KindValidation
	KindAuth
	// KindTransient covers network failures, timeouts and 5xx responses.
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindDependencyConflict:
		return "dependency_conflict"
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindTransient:
		return "transient"
	default:
		return "unknown"
	}
}

const dependencyConflictCode = "dependency_conflict"

var conflictKeywords = []string{"vinculado", "vinculada", "pedido", "produto"}

// ClassifyError maps an error returned by the client to a Kind. The structured
// dependency_conflict code wins; older deployments that only send a message are matched by
// keyword when the status is 400, 409 or 500.
func ClassifyError(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == dependencyConflictCode {
			return KindDependencyConflict
		}
		switch apiErr.Status {
		case http.StatusBadRequest, http.StatusConflict, http.StatusInternalServerError:
			if mentionsDependency(apiErr.Message) {
				return KindDependencyConflict
			}
		}
		switch {
		case apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden:
			return KindAuth
		case apiErr.Status == http.StatusRequestTimeout || apiErr.Status == http.StatusTooManyRequests:
			return KindTransient
		case apiErr.Status >= 500:
			return KindTransient
		case apiErr.Status >= 400:
			return KindValidation
		}
		return KindUnknown
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransient
	}
	return KindUnknown
}

func mentionsDependency(message string) bool {
	folded := textutil.Fold(message)
	if folded == "" {
		return false
	}
	for _, keyword := range conflictKeywords {
		if strings.Contains(folded, keyword) {
			return true
		}
	}
	return false
}
