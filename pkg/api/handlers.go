package api

import (
	"errors"
	"net/http"

	"github.com/iotnet/mqtt-auth/pkg/credentials"
	"github.com/iotnet/mqtt-auth/pkg/decision"
	"github.com/iotnet/mqtt-auth/pkg/httputil"
	"github.com/iotnet/mqtt-auth/pkg/observability"
)

// Broker-hook verdicts.
const (
	resultAllow = "allow"
	resultDeny  = "deny"
)

type createRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	IsSuperuser bool   `json:"is_superuser"`
}

type checkRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Method   string `json:"method"`
}

type aclRequest struct {
	Username string `json:"username"`
	Topic    string `json:"topic"`
}

// credentialView is the list/detail projection of a credential. The stored
// secret never leaves the service through the list route.
type credentialView struct {
	Username    string `json:"username"`
	IsSuperuser bool   `json:"is_superuser"`
}

func (s *Server) createCredential(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	err := s.creds.CreateCredential(r.Context(), req.Username, req.Password, req.IsSuperuser)
	if err != nil {
		if bad, ok := credentials.AsBadRequest(err); ok {
			httputil.WriteValidationErrors(w, "", bad.Errors)
			return
		}
		if errors.Is(err, credentials.ErrConflict) {
			httputil.WriteError(w, http.StatusConflict, credentials.ErrConflict.Error())
			return
		}
		s.logError(r, err, "create credential failed")
		httputil.WriteInternalError(w)
		return
	}

	httputil.WriteCreated(w, "mqtt user created")
}

func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	method, ok := decision.ParseAuthMethod(req.Method)
	if !ok && req.Method != "" {
		httputil.WriteValidationErrors(w, resultDeny, []credentials.ValidationError{
			{Field: "method", Message: "method must be credentials or jwt"},
		})
		return
	}

	result, err := s.auth.Authenticate(r.Context(), decision.AuthRequest{
		Username: req.Username,
		Password: req.Password,
		Method:   method,
	})
	if err != nil {
		if bad, ok := credentials.AsBadRequest(err); ok {
			httputil.WriteValidationErrors(w, resultDeny, bad.Errors)
			return
		}
		if errors.Is(err, credentials.ErrNotFound) {
			httputil.WriteErrorWithResult(w, http.StatusNotFound, credentials.ErrNotFound.Error(), resultDeny, nil)
			return
		}
		if errors.Is(err, decision.ErrInvalidCredentials) {
			httputil.WriteErrorWithResult(w, http.StatusUnauthorized, "invalid credentials", resultDeny, nil)
			return
		}
		s.logError(r, err, "authentication failed")
		httputil.WriteInternalError(w)
		return
	}

	var data interface{}
	if result.Token != "" {
		data = map[string]string{"token": result.Token}
	}
	httputil.WriteDecision(w, "authentication successful", resultAllow, data)
}

func (s *Server) authorize(w http.ResponseWriter, r *http.Request) {
	var req aclRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	granted, err := s.acl.Authorize(r.Context(), decision.ACLRequest{
		Username: req.Username,
		Topic:    req.Topic,
	})
	if err != nil {
		if bad, ok := credentials.AsBadRequest(err); ok {
			httputil.WriteValidationErrors(w, resultDeny, bad.Errors)
			return
		}
		if errors.Is(err, credentials.ErrNotFound) {
			httputil.WriteErrorWithResult(w, http.StatusNotFound, credentials.ErrNotFound.Error(), resultDeny, nil)
			return
		}
		s.logError(r, err, "acl check failed")
		httputil.WriteInternalError(w)
		return
	}

	// Deny is a verdict, not an error: the broker hook gets 200 either way and
	// keys off result.
	if !granted {
		httputil.WriteDecision(w, "topic access denied", resultDeny, nil)
		return
	}
	httputil.WriteDecision(w, "topic access granted", resultAllow, nil)
}

func (s *Server) getCredentials(w http.ResponseWriter, r *http.Request) {
	username := httputil.PathVar(r, "username")

	plain, err := s.creds.GetCredentials(r.Context(), username)
	if err != nil {
		if bad, ok := credentials.AsBadRequest(err); ok {
			httputil.WriteValidationErrors(w, "", bad.Errors)
			return
		}
		if errors.Is(err, credentials.ErrNotFound) {
			httputil.WriteError(w, http.StatusNotFound, credentials.ErrNotFound.Error())
			return
		}
		s.logError(r, err, "credential retrieval failed")
		httputil.WriteInternalError(w)
		return
	}

	httputil.WriteSuccess(w, "credentials retrieved", plain)
}

func (s *Server) deleteCredential(w http.ResponseWriter, r *http.Request) {
	username := httputil.PathVar(r, "username")

	if err := s.creds.DeleteCredential(r.Context(), username); err != nil {
		if bad, ok := credentials.AsBadRequest(err); ok {
			httputil.WriteValidationErrors(w, "", bad.Errors)
			return
		}
		if errors.Is(err, credentials.ErrNotFound) {
			httputil.WriteError(w, http.StatusNotFound, credentials.ErrNotFound.Error())
			return
		}
		s.logError(r, err, "credential deletion failed")
		httputil.WriteInternalError(w)
		return
	}

	httputil.WriteSuccess(w, "mqtt user deleted", nil)
}

func (s *Server) listCredentials(w http.ResponseWriter, r *http.Request) {
	creds, err := s.creds.ListCredentials(r.Context())
	if err != nil {
		s.logError(r, err, "credential listing failed")
		httputil.WriteInternalError(w)
		return
	}

	views := make([]credentialView, 0, len(creds))
	for _, c := range creds {
		views = append(views, credentialView{
			Username:    c.Username,
			IsSuperuser: c.IsSuperuser,
		})
	}

	httputil.WriteSuccess(w, "mqtt users retrieved", views)
}

func (s *Server) logError(r *http.Request, err error, msg string) {
	logger := observability.FromContext(r.Context())
	if logger == nil {
		logger = s.logger
	}
	logger.WithError(err).WithField("path", r.URL.Path).Error(msg)
}
