package mockdata

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/trezcool/masomo-admin/core"
	"github.com/trezcool/masomo-admin/core/apiclient"
	"github.com/trezcool/masomo-admin/core/auth"
	"github.com/trezcool/masomo-admin/core/transfer"
)

const (
	FilesPath = "/api/files"

	invalidCredentialsMsg = "invalid username or password"
	inactiveAccountMsg    = "this account is disabled"
)

// Options are the live collaborators of the dynamic routes.
type Options struct {
	Issuer *auth.Issuer    // signs the mock session tokens
	Files  *transfer.Store // receives mock uploads; NewTable creates one when nil
}

type mocker struct {
	fixtures *Fixtures
	issuer   *auth.Issuer
	files    *transfer.Store

	mu     sync.Mutex
	nextID map[string]int
}

// NewTable builds the mock table from the embedded fixtures.
func NewTable(opts Options) (*apiclient.MockTable, error) {
	fx, err := LoadFixtures()
	if err != nil {
		return nil, err
	}
	return NewTableFrom(fx, opts), nil
}

// NewTableFrom builds the mock table from fx.
// Exact routes: login, refresh, logout, the upload protocol and every fixture route.
// Substring rules: one per fixture resource, in file order.
func NewTableFrom(fx *Fixtures, opts Options) *apiclient.MockTable {
	if opts.Issuer == nil {
		opts.Issuer = auth.NewIssuer("mock-secret", "Masomo", 24*time.Hour)
	}
	if opts.Files == nil {
		opts.Files = transfer.NewStore(FilesPath)
	}
	m := &mocker{fixtures: fx, issuer: opts.Issuer, files: opts.Files, nextID: make(map[string]int)}

	table := apiclient.NewMockTable()
	table.Handle(http.MethodPost, auth.LoginPath, m.login)
	table.Handle(http.MethodPost, auth.RefreshPath, m.refresh)
	table.Static(http.MethodPost, auth.LogoutPath, []byte(`{"success":true}`))

	table.Handle(http.MethodGet, transfer.UploadPath+"/check", m.checkUpload)
	table.Handle(http.MethodPost, transfer.UploadPath+"/chunk", m.uploadChunk)
	table.Handle(http.MethodPost, transfer.UploadPath+"/merge", m.mergeUpload)

	for _, route := range fx.Routes {
		table.Static(route.Method, route.Path, route.Payload)
	}
	for _, res := range fx.Resources {
		table.Contains(res.Match, m.resource(res))
	}
	return table
}

// Auth

func (m *mocker) login(req *apiclient.Request) apiclient.MockResult {
	fields := apiclient.Fields(req)
	login := core.CleanString(fields.Get("username"), true /* lower */)
	pwd := fields.Get("password")

	for _, acc := range m.fixtures.Users {
		if acc.Username != login && acc.Email != login {
			continue
		}
		if acc.Password != pwd {
			break
		}
		if !acc.IsActive {
			return rejection(inactiveAccountMsg, "username")
		}
		token, err := m.issuer.Issue(acc.User)
		if err != nil {
			return rejection(err.Error(), "")
		}
		return m.session(token, token, &acc.User)
	}
	return rejection(invalidCredentialsMsg, "password")
}

func (m *mocker) refresh(req *apiclient.Request) apiclient.MockResult {
	fields := apiclient.Fields(req)
	refreshToken := fields.Get("refreshToken")
	if refreshToken == "" {
		refreshToken = fields.Get("refresh_token")
	}

	token, _, err := m.issuer.Refresh(refreshToken)
	if err != nil {
		return rejection(err.Error(), "")
	}
	return m.session(token, refreshToken, nil)
}

func (m *mocker) session(token, refreshToken string, usr interface{}) apiclient.MockResult {
	data := map[string]interface{}{
		"token":        token,
		"refreshToken": refreshToken,
		"expiresIn":    int(m.issuer.Expiration().Seconds()),
	}
	if usr != nil {
		data["user"] = usr
	}
	return apiclient.HitJSON(map[string]interface{}{"success": true, "data": data})
}

func rejection(msg, field string) apiclient.MockResult {
	body := map[string]interface{}{"success": false, "message": msg}
	if field != "" {
		body["field"] = field
	}
	return apiclient.HitJSON(body)
}

// Uploads

func (m *mocker) checkUpload(req *apiclient.Request) apiclient.MockResult {
	return apiclient.HitJSON(m.files.CheckStatus(apiclient.Fields(req).Get("fileHash")))
}

func (m *mocker) uploadChunk(req *apiclient.Request) apiclient.MockResult {
	if req.Form == nil {
		return failure("no chunk in request")
	}
	fields := apiclient.Fields(req)
	index, err := strconv.Atoi(fields.Get("chunkIndex"))
	if err != nil {
		return failure("invalid chunkIndex")
	}
	count, err := strconv.Atoi(fields.Get("chunkCount"))
	if err != nil {
		return failure("invalid chunkCount")
	}
	chunkSize, ok := optionalInt64(fields.Get("chunkSize"))
	if !ok {
		return failure("invalid chunkSize")
	}
	fileSize, ok := optionalInt64(fields.Get("fileSize"))
	if !ok {
		return failure("invalid fileSize")
	}

	res, err := m.files.UploadChunk(transfer.ChunkInfo{
		FileHash:   fields.Get("fileHash"),
		Filename:   fields.Get("filename"),
		Index:      index,
		ChunkSize:  chunkSize,
		ChunkCount: count,
		FileSize:   fileSize,
		Data:       req.Form.File,
	})
	if err != nil {
		return failure(err.Error())
	}
	return apiclient.HitJSON(res)
}

func (m *mocker) mergeUpload(req *apiclient.Request) apiclient.MockResult {
	fields := apiclient.Fields(req)
	size, ok := optionalInt64(fields.Get("size"))
	if !ok {
		return failure("invalid size")
	}
	count, err := strconv.Atoi(fields.Get("chunkCount"))
	if err != nil {
		return failure("invalid chunkCount")
	}

	res, err := m.files.Merge(fields.Get("fileHash"), fields.Get("filename"), size, count)
	if err != nil {
		return failure(err.Error())
	}
	return apiclient.HitJSON(res)
}

// optionalInt64 parses s, an empty s being 0.
func optionalInt64(s string) (int64, bool) {
	if s == "" {
		return 0, true
	}
	n, err := strconv.ParseInt(s, 10, 64)
	return n, err == nil
}

func failure(msg string) apiclient.MockResult {
	return apiclient.HitJSON(map[string]interface{}{"success": false, "message": msg})
}

// Resources

// resource answers lists and items from the fixture items, and echoes writes back with an id.
func (m *mocker) resource(res Resource) apiclient.MockHandler {
	return func(req *apiclient.Request) apiclient.MockResult {
		id, hasID := lastID(req.Path)

		switch strings.ToUpper(req.Method) {
		case http.MethodGet:
			if !hasID {
				return wrap(res.Items)
			}
			for _, item := range res.Items {
				if itemID(item) == id {
					return wrap(item)
				}
			}
			return apiclient.NoMock()
		case http.MethodDelete:
			return apiclient.Hit([]byte(`{"success":true}`))
		case http.MethodPost:
			if !hasID {
				id = m.newID(res)
			}
		}

		item := make(map[string]interface{})
		if req.Body != nil {
			if b, err := json.Marshal(req.Body); err == nil {
				_ = json.Unmarshal(b, &item)
			}
		}
		delete(item, "password")
		delete(item, "password_confirm")
		item["id"] = id
		return apiclient.HitJSON(map[string]interface{}{"success": true, "data": item})
	}
}

func (m *mocker) newID(res Resource) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.nextID[res.Match]; !ok {
		var max int
		for _, item := range res.Items {
			if id := itemID(item); id > max {
				max = id
			}
		}
		m.nextID[res.Match] = max
	}
	m.nextID[res.Match]++
	return m.nextID[res.Match]
}

// wrap nests a payload under "data": fixture items carry fields (eg. "title")
// that the normalizer would take for an error envelope at the top level.
func wrap(v interface{}) apiclient.MockResult {
	return apiclient.HitJSON(map[string]interface{}{"data": v})
}

func itemID(item json.RawMessage) int {
	var head struct {
		ID int `json:"id"`
	}
	if json.Unmarshal(item, &head) != nil {
		return 0
	}
	return head.ID
}

// lastID returns the last numeric segment of path, eg. 3 for /api/applications/3/approve.
func lastID(path string) (int, bool) {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	segs := strings.Split(strings.Trim(path, "/"), "/")
	for i := len(segs) - 1; i >= 0; i-- {
		if id, err := strconv.Atoi(segs[i]); err == nil && !strings.ContainsAny(segs[i], "+-") {
			return id, true
		}
	}
	return 0, false
}
