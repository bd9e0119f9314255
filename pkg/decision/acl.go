package decision

import (
	"context"
	"errors"
	"strings"

	"github.com/iotnet/mqtt-auth/pkg/credentials"
	"github.com/iotnet/mqtt-auth/pkg/observability"
)

// topicNamespaceRoot is the prefix under which every user owns a private topic
// subtree.
const topicNamespaceRoot = "users/"

// TopicNamespace returns the private topic prefix for username. Deriving it with
// an explicit trailing separator keeps "alice" from matching "alicedata/...".
func TopicNamespace(username string) string {
	return topicNamespaceRoot + username + "/"
}

// ACLRequest is one topic authorization attempt.
type ACLRequest struct {
	Username string
	Topic    string
}

// ACLService decides whether an authenticated client may touch a topic.
// A deny is a value, never an error; errors are reserved for input, lookup, and
// backend faults.
type ACLService struct {
	creds   *credentials.Service
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewACLService wires a topic authorization service. metrics may be nil.
func NewACLService(creds *credentials.Service, logger *observability.Logger, metrics *observability.Metrics) *ACLService {
	return &ACLService{creds: creds, logger: logger, metrics: metrics}
}

// Authorize grants superusers unconditionally and everyone else only topics
// inside their private namespace.
func (s *ACLService) Authorize(ctx context.Context, req ACLRequest) (bool, error) {
	if err := validateACLRequest(req); err != nil {
		s.count("bad_request")
		return false, err
	}

	cred, err := s.creds.Lookup(ctx, req.Username)
	if errors.Is(err, credentials.ErrNotFound) {
		s.logger.WithField("username", req.Username).Debug("acl denied: user not found")
		s.count("not_found")
		return false, credentials.ErrNotFound
	} else if err != nil {
		s.count("error")
		return false, err
	}

	if cred.IsSuperuser {
		s.logger.WithFields(map[string]interface{}{
			"username": req.Username,
			"topic":    req.Topic,
		}).Debug("acl granted: superuser")
		s.count("granted")
		return true, nil
	}

	if !strings.HasPrefix(req.Topic, TopicNamespace(req.Username)) {
		s.logger.WithFields(map[string]interface{}{
			"username": req.Username,
			"topic":    req.Topic,
		}).Debug("acl denied: topic outside user namespace")
		s.count("denied")
		return false, nil
	}

	s.count("granted")
	return true, nil
}

func validateACLRequest(req ACLRequest) error {
	var violations []credentials.ValidationError

	if strings.TrimSpace(req.Username) == "" {
		violations = append(violations, credentials.ValidationError{
			Field:   "username",
			Message: "username cannot be empty",
		})
	}
	if strings.TrimSpace(req.Topic) == "" {
		violations = append(violations, credentials.ValidationError{
			Field:   "topic",
			Message: "topic cannot be empty",
		})
	}

	if len(violations) > 0 {
		return &credentials.BadRequestError{Errors: violations}
	}
	return nil
}

func (s *ACLService) count(outcome string) {
	if s.metrics != nil {
		s.metrics.ACLDecisionsTotal.WithLabelValues(outcome).Inc()
	}
}
