package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	echoapi "github.com/trezcool/academia/apps/api/echo"
	"github.com/trezcool/academia/core/user"
	testutil "github.com/trezcool/academia/tests"
)

func Test_userApi_login(t *testing.T) {
	usr := testutil.CreateUser(t, usrRepo, "Login User", "loginusr", "loginusr@test.cd", "LePassword", nil, true)
	naughty := testutil.CreateUser(t, usrRepo, "Naughty", "nologin", "nologin@test.cd", "LePassword", nil, false)

	tests := []httpTest{
		{
			name: "required fields", body: marchallObj(t, map[string]string{}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"username": "this field is required", "password": "this field is required"}),
		},
		{
			name: "unknown user", body: marchallObj(t, map[string]string{"username": "ghost", "password": "LePassword"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", body: marchallObj(t, map[string]string{"username": usr.Username, "password": "nope"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "deactivated account", body: marchallObj(t, map[string]string{"username": naughty.Username, "password": "LePassword"}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("login by username", func(t *testing.T) {
		body := marchallObj(t, map[string]string{"username": usr.Username, "password": "LePassword"})
		req, rec := newRequest(http.MethodPost, "/v1/users/login", body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var resp echoapi.LoginResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if resp.Token == "" {
			t.Error("empty token")
		}
	})

	t.Run("login by email", func(t *testing.T) {
		body := marchallObj(t, map[string]string{"username": usr.Email, "password": "LePassword"})
		req, rec := newRequest(http.MethodPost, "/v1/users/login", body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
	})
}

func Test_userApi_detailAccess(t *testing.T) {
	admin := testutil.CreateUser(t, usrRepo, "Admin", "accadmin", "accadmin@test.cd", "", []string{user.RoleAdmin}, true)
	usr := testutil.CreateUser(t, usrRepo, "Plain User", "accplain", "accplain@test.cd", "", nil, true)
	other := testutil.CreateUser(t, usrRepo, "Other User", "accother", "accother@test.cd", "", nil, true)

	adminToken := getToken(t, admin)
	usrToken := getToken(t, usr)

	tests := []httpTest{
		{name: "auth required", path: "/v1/users/" + usr.ID, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "own detail", path: "/v1/users/" + usr.ID, token: usrToken, wantCode: http.StatusOK, wantData: marchallObj(t, usr)},
		{
			name: "someone else's detail is hidden", path: "/v1/users/" + other.ID, token: usrToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{name: "admin sees all", path: "/v1/users/" + other.ID, token: adminToken, wantCode: http.StatusOK, wantData: marchallObj(t, other)},
		{
			name: "admin required for list", path: "/v1/users", token: usrToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
