package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-admin/core"
	"github.com/trezcool/masomo-admin/core/apiclient"
	"github.com/trezcool/masomo-admin/core/user"
	"github.com/trezcool/masomo-admin/storage/session"
)

const (
	LoginPath   = "/api/auth/login"
	RefreshPath = "/api/auth/refresh"
	LogoutPath  = "/api/auth/logout"

	refreshMargin = time.Minute
)

var (
	// errors
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrRoleNotAllowed   = errors.New("role not granted to the current user")
	ErrNoRefreshToken   = errors.New("no refresh token")
)

// LoginError is a login rejection, possibly tied to one of the form fields.
type LoginError struct {
	Field   string
	Message string
}

func (e *LoginError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func IsLoginError(err error) bool {
	var lErr *LoginError
	return errors.As(err, &lErr)
}

// credentials is the body of the login endpoint.
type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Service authenticates the admin against the API and keeps the session.
type Service struct {
	client *apiclient.Client
	state  *State
	logger core.Logger
	now    func() time.Time
}

func NewService(client *apiclient.Client, state *State, logger core.Logger) *Service {
	if logger == nil {
		logger = core.NopLogger{}
	}
	return &Service{client: client, state: state, logger: logger, now: time.Now}
}

// Login authenticates the user and stores the new session.
// A rejected login returns a *LoginError carrying the backend message.
func (svc *Service) Login(ctx context.Context, username, password string) (session.Session, error) {
	username = core.CleanString(username)
	switch {
	case username == "":
		return session.Session{}, &LoginError{Field: "username", Message: "this field is required"}
	case password == "":
		return session.Session{}, &LoginError{Field: "password", Message: "this field is required"}
	}

	resp, err := svc.client.Do(ctx, &apiclient.Request{
		Method: http.MethodPost,
		Path:   LoginPath,
		Body:   credentials{Username: username, Password: password},
	})
	if err != nil {
		return session.Session{}, errors.Wrap(err, "logging in")
	}

	sess, err := svc.parse(resp)
	if err != nil {
		return session.Session{}, err
	}
	if sess.CurrentUser != nil && len(sess.CurrentUser.Roles) == 1 {
		sess.CurrentRole = sess.CurrentUser.Roles[0]
	}
	if err := svc.state.save(sess); err != nil {
		return session.Session{}, err
	}
	svc.logger.Info("logged in", map[string]interface{}{"username": username, "source": resp.Source.String()})
	return sess, nil
}

// Logout tells the backend (best effort) and forgets the session.
func (svc *Service) Logout(ctx context.Context) error {
	if svc.state.AccessToken() != "" {
		if err := svc.client.Post(ctx, LogoutPath, nil, nil); err != nil {
			svc.logger.Warn("logout request failed", err)
		}
	}
	return svc.state.clear()
}

// Refresh exchanges the refresh token (or the access token when there is none) for a new session.
func (svc *Service) Refresh(ctx context.Context) (session.Session, error) {
	cur := svc.state.Session()
	token := cur.RefreshToken
	if token == "" {
		token = cur.AccessToken
	}
	if token == "" {
		return session.Session{}, ErrNoRefreshToken
	}

	resp, err := svc.client.Do(ctx, &apiclient.Request{
		Method: http.MethodPost,
		Path:   RefreshPath,
		Body:   map[string]string{"refreshToken": token},
	})
	if err != nil {
		return session.Session{}, errors.Wrap(err, "refreshing token")
	}
	sess, err := svc.parse(resp)
	if err != nil {
		return session.Session{}, err
	}

	if sess.CurrentUser == nil {
		sess.CurrentUser = cur.CurrentUser
	}
	if sess.RefreshToken == "" {
		sess.RefreshToken = cur.RefreshToken
	}
	sess.CurrentRole = cur.CurrentRole
	if err := svc.state.save(sess); err != nil {
		return session.Session{}, err
	}
	return sess, nil
}

// EnsureFresh refreshes the session when its access token expires within a minute.
func (svc *Service) EnsureFresh(ctx context.Context) error {
	sess := svc.state.Session()
	if sess.AccessToken == "" {
		return ErrNotAuthenticated
	}
	if sess.TokenExpiry.IsZero() || sess.TokenExpiry.After(svc.now().Add(refreshMargin)) {
		return nil
	}
	_, err := svc.Refresh(ctx)
	return err
}

func (svc *Service) IsAuthenticated() bool {
	sess := svc.state.Session()
	return sess.AccessToken != "" && !sess.Expired(svc.now())
}

func (svc *Service) CurrentUser() (user.User, error) {
	sess := svc.state.Session()
	if sess.AccessToken == "" || sess.CurrentUser == nil {
		return user.User{}, ErrNotAuthenticated
	}
	return *sess.CurrentUser, nil
}

// CurrentRole returns the role selected for this session, "" when none was selected yet.
func (svc *Service) CurrentRole() string {
	return svc.state.Session().CurrentRole
}

// Roles returns the roles of the current user, highest priority first.
func (svc *Service) Roles() ([]user.Role, error) {
	usr, err := svc.CurrentUser()
	if err != nil {
		return nil, err
	}
	roles := make([]user.Role, 0, len(usr.Roles))
	for _, r := range usr.Roles {
		roles = append(roles, user.Role{Name: user.RoleName(r), Value: r})
	}
	sort.SliceStable(roles, func(i, j int) bool {
		return user.RolePriority(roles[i].Value) > user.RolePriority(roles[j].Value)
	})
	return roles, nil
}

// SelectRole sets the role the admin acts with. It must be one of the current user's roles.
func (svc *Service) SelectRole(role string) error {
	usr, err := svc.CurrentUser()
	if err != nil {
		return err
	}
	if !usr.HasRole(role) {
		return errors.Wrap(ErrRoleNotAllowed, role)
	}
	sess := svc.state.Session()
	sess.CurrentRole = role
	return svc.state.save(sess)
}

// AccessToken returns the bearer token of the current session.
func (svc *Service) AccessToken() string {
	return svc.state.AccessToken()
}

// parse reads a login or refresh envelope. Backends disagree on names and nesting:
// tokens may be "token", "accessToken" or "access_token", possibly under "data" or "result".
func (svc *Service) parse(resp *apiclient.Response) (session.Session, error) {
	doc := newAuthDocument(resp.Data)
	if lErr := doc.rejection(resp.Status); lErr != nil {
		return session.Session{}, lErr
	}

	sess := session.Session{
		AccessToken:  doc.str("token", "accessToken", "access_token", "jwt"),
		RefreshToken: doc.str("refreshToken", "refresh_token"),
	}
	if sess.AccessToken == "" {
		return session.Session{}, &LoginError{Message: "no token in login response"}
	}

	if secs, ok := doc.num("expiresIn", "expires_in"); ok && secs > 0 {
		sess.TokenExpiry = svc.now().Add(time.Duration(secs * float64(time.Second)))
	} else if exp, err := ParseExpiry(sess.AccessToken); err == nil {
		sess.TokenExpiry = exp
	}

	var usr user.User
	if raw, ok := doc.get("user", "userInfo"); ok && json.Unmarshal(raw, &usr) == nil && (usr.ID != 0 || usr.Username != "") {
		sess.CurrentUser = &usr
	} else if claims, err := ParseUnverified(sess.AccessToken); err == nil && claims.Username != "" {
		usr = claims.User()
		sess.CurrentUser = &usr
	}
	return sess, nil
}

// authDocument is a login envelope: nested payload fields first, then top level ones.
type authDocument []map[string]json.RawMessage

func newAuthDocument(raw []byte) authDocument {
	var top map[string]json.RawMessage
	if json.Unmarshal(raw, &top) != nil {
		return nil
	}
	var doc authDocument
	for _, key := range []string{"data", "result"} {
		var nested map[string]json.RawMessage
		if v, ok := top[key]; ok && json.Unmarshal(v, &nested) == nil && nested != nil {
			doc = append(doc, nested)
		}
	}
	return append(doc, top)
}

func (doc authDocument) get(keys ...string) (json.RawMessage, bool) {
	for _, m := range doc {
		for _, key := range keys {
			if v, ok := m[key]; ok && !bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
				return v, true
			}
		}
	}
	return nil, false
}

func (doc authDocument) str(keys ...string) string {
	raw, ok := doc.get(keys...)
	if !ok {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

func (doc authDocument) num(keys ...string) (float64, bool) {
	raw, ok := doc.get(keys...)
	if !ok {
		return 0, false
	}
	var n float64
	if json.Unmarshal(raw, &n) != nil {
		return 0, false
	}
	return n, true
}

func (doc authDocument) isFalse(key string) bool {
	raw, ok := doc.get(key)
	return ok && bytes.Equal(bytes.TrimSpace(raw), []byte("false"))
}

// rejection returns the login error an envelope carries, if any.
func (doc authDocument) rejection(httpStatus int) *LoginError {
	status, _ := doc.num("status", "code")
	failed := httpStatus >= http.StatusBadRequest || doc.isFalse("success") || doc.isFalse("isSuccess") || status >= 400
	if !failed {
		return nil
	}

	lErr := &LoginError{
		Field:   doc.str("field"),
		Message: doc.str("message", "error", "errorMessage", "title"),
	}
	if raw, ok := doc.get("errors"); ok {
		var byField map[string][]string
		if json.Unmarshal(raw, &byField) == nil && len(byField) > 0 {
			fields := make([]string, 0, len(byField))
			for f := range byField {
				fields = append(fields, f)
			}
			sort.Strings(fields)
			if lErr.Field == "" {
				lErr.Field = strings.ToLower(fields[0])
			}
			if msgs := byField[fields[0]]; lErr.Message == "" && len(msgs) > 0 {
				lErr.Message = msgs[0]
			}
		}
	}
	if lErr.Message == "" {
		lErr.Message = "authentication failed"
	}
	return lErr
}
