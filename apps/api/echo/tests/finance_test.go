package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"

	echoapi "github.com/trezcool/academia/apps/api/echo"
	"github.com/trezcool/academia/core/finance"
	"github.com/trezcool/academia/core/user"
	testutil "github.com/trezcool/academia/tests"
)

func Test_financeApi_feesFlow(t *testing.T) {
	bursar := testutil.CreateUser(t, usrRepo, "Bursar", "feebursar", "feebursar@test.cd", "", []string{user.RoleAdminBursar}, true)
	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "feeteach", "feeteach@test.cd", "", []string{user.RoleTeacher}, true)

	bursarToken := getToken(t, bursar)
	teacherToken := getToken(t, teacher)

	cls := testutil.CreateClass(t, schoolRepo, "Form 2", 2)
	term := testutil.CreateTerm(t, schoolRepo, "Term 1", "2023-2024", parseDate(t, "2023-09-04"), parseDate(t, "2023-12-08"))
	dan := testutil.CreateStudent(t, schoolRepo, "Dan", "adm-200", "dan@test.cd", cls.ID)
	eve := testutil.CreateStudent(t, schoolRepo, "Eve", "adm-201", "", cls.ID)

	fsBody := marchallObj(t, map[string]interface{}{
		"class_id": cls.ID,
		"term_id":  term.ID,
		"session":  "2023-2024",
		"due_date": "2023-10-01T00:00:00Z",
		"items": []map[string]interface{}{
			{"category": "tuition", "amount": "1000"},
			{"category": "library", "amount": "200"},
		},
	})

	t.Run("create requires admin", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/finance/fee-structures", teacherToken, fsBody)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, rec)
	})

	var fs finance.FeeStructure

	t.Run("create fee structure", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/finance/fee-structures", bursarToken, fsBody)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &fs); err != nil {
			t.Fatalf("unmarshalling fee structure: %v", err)
		}
		if len(fs.Items) != 2 {
			t.Fatalf("len(fs.Items) = %d; want 2", len(fs.Items))
		}
	})

	var obligations []finance.Obligation

	t.Run("bill fees creates one obligation per student", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/finance/fee-structures/"+fs.ID+"/bill", bursarToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &obligations); err != nil {
			t.Fatalf("unmarshalling obligations: %v", err)
		}
		if len(obligations) != 2 {
			t.Fatalf("len(obligations) = %d; want 2", len(obligations))
		}
		for _, ob := range obligations {
			if !ob.Amount.Equal(decimal.NewFromInt(1200)) {
				t.Errorf("ob.Amount = %s; want 1200", ob.Amount)
			}
			if ob.Settled {
				t.Errorf("fresh obligation already settled: %+v", ob)
			}
		}
	})

	t.Run("bill fees rerun bills nobody twice", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/finance/fee-structures/"+fs.ID+"/bill", bursarToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusCreated, wantData: marchallList(t)}, rec)
	})

	obligationOf := func(t *testing.T, studentID string) finance.Obligation {
		for _, ob := range obligations {
			if ob.StudentID == studentID {
				return ob
			}
		}
		t.Fatalf("no obligation for student %s", studentID)
		return finance.Obligation{}
	}

	t.Run("partial payment with late fine", func(t *testing.T) {
		ob := obligationOf(t, dan.ID)
		body := marchallObj(t, map[string]interface{}{
			"amount":         "700",
			"fine":           "50",
			"payment_method": "cash",
			"request_key":    "fees-dan-1",
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/finance/obligations/"+ob.ID+"/payments", bursarToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var got finance.Obligation
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("unmarshalling obligation: %v", err)
		}
		if !got.Paid.Equal(decimal.NewFromInt(700)) || got.Settled {
			t.Errorf("got Paid=%s Settled=%v; want Paid=700 Settled=false", got.Paid, got.Settled)
		}
		// 1200 + 50 fine - 700 paid
		if out := got.Outstanding(); !out.Equal(decimal.NewFromInt(550)) {
			t.Errorf("Outstanding() = %s; want 550", out)
		}
	})

	t.Run("replayed request key is rejected", func(t *testing.T) {
		ob := obligationOf(t, dan.ID)
		body := marchallObj(t, map[string]interface{}{
			"amount":         "100",
			"payment_method": "cash",
			"request_key":    "fees-dan-1",
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/finance/obligations/"+ob.ID+"/payments", bursarToken, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: "a payment with this request key was already recorded"}),
		}, rec)

		// the replay left the obligation untouched
		req, rec = newAuthRequest(http.MethodGet, "/v1/finance/students/"+dan.ID+"/obligations", bursarToken)
		app.ServeHTTP(rec, req)
		var obs []finance.Obligation
		if err := json.Unmarshal(rec.Body.Bytes(), &obs); err != nil {
			t.Fatalf("unmarshalling obligations: %v", err)
		}
		if len(obs) != 1 || !obs[0].Paid.Equal(decimal.NewFromInt(700)) {
			t.Errorf("obligations after replay: %+v", obs)
		}
	})

	t.Run("zero amount settles the outstanding balance", func(t *testing.T) {
		ob := obligationOf(t, dan.ID)
		body := marchallObj(t, map[string]interface{}{
			"payment_method": "mobile_money",
			"request_key":    "fees-dan-2",
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/finance/obligations/"+ob.ID+"/payments", bursarToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var got finance.Obligation
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("unmarshalling obligation: %v", err)
		}
		if !got.Settled || !got.Outstanding().IsZero() {
			t.Errorf("got Settled=%v Outstanding=%s; want settled with nothing outstanding", got.Settled, got.Outstanding())
		}
	})

	t.Run("overpayment is rejected", func(t *testing.T) {
		ob := obligationOf(t, eve.ID)
		body := marchallObj(t, map[string]interface{}{
			"amount":         "5000",
			"payment_method": "cash",
			"request_key":    "fees-eve-1",
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/finance/obligations/"+ob.ID+"/payments", bursarToken, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"amount": "amount exceeds the outstanding balance of 1200.00"}),
		}, rec)
	})

	t.Run("unknown obligation", func(t *testing.T) {
		body := marchallObj(t, map[string]interface{}{
			"amount":         "100",
			"payment_method": "cash",
			"request_key":    "fees-nope-1",
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/finance/obligations/nope/payments", bursarToken, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "obligation not found"}),
		}, rec)
	})
}

func Test_financeApi_canteenAndBalance(t *testing.T) {
	bursar := testutil.CreateUser(t, usrRepo, "Bursar", "canbursar", "canbursar@test.cd", "", []string{user.RoleAdminBursar}, true)
	bursarToken := getToken(t, bursar)

	cls := testutil.CreateClass(t, schoolRepo, "Form 3", 3)
	plan := testutil.CreateMealPlan(t, schoolRepo, "Full Board", decimal.NewFromInt(150))
	fay := testutil.CreateStudent(t, schoolRepo, "Fay", "adm-300", "fay@test.cd", cls.ID)

	payBody := func(amount, key, method string) []byte {
		return marchallObj(t, map[string]interface{}{
			"amount":         amount,
			"payment_method": method,
			"request_key":    key,
		})
	}

	t.Run("no meal plan assigned", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/finance/students/"+fay.ID+"/payments/canteen", bursarToken, payBody("150", "can-fay-1", "cash"))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "student has no meal plan assigned"}),
		}, rec)
	})

	t.Run("assign meal plan", func(t *testing.T) {
		body := marchallObj(t, echoapi.AssignMealPlanRequest{MealPlanID: plan.ID})
		req, rec := newAuthRequest(http.MethodPut, "/v1/school/students/"+fay.ID+"/meal-plan", bursarToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
	})

	t.Run("amount must match plan price", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/finance/students/"+fay.ID+"/payments/canteen", bursarToken, payBody("100", "can-fay-2", "cash"))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"amount": "amount 100.00 does not match the meal plan price of 150.00"}),
		}, rec)

		// the mismatch left no trace in the ledger
		req, rec = newAuthRequest(http.MethodGet, "/v1/finance/students/"+fay.ID+"/ledger", bursarToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t)}, rec)
	})

	t.Run("exact amount settles the canteen obligation", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/finance/students/"+fay.ID+"/payments/canteen", bursarToken, payBody("150", "can-fay-3", "cash"))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
		}
		var ob finance.Obligation
		if err := json.Unmarshal(rec.Body.Bytes(), &ob); err != nil {
			t.Fatalf("unmarshalling obligation: %v", err)
		}
		if ob.Kind != finance.KindCanteen || !ob.Settled || ob.Label != plan.Name {
			t.Errorf("obligation: %+v", ob)
		}
	})

	checkBalance := func(t *testing.T, want string) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/finance/students/"+fay.ID+"/balance", bursarToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var got echoapi.BalanceResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("unmarshalling balance: %v", err)
		}
		if got.Balance.String() != want {
			t.Errorf("Balance = %s; want %s", got.Balance, want)
		}
	}

	t.Run("cash payments never touch the account balance", func(t *testing.T) {
		checkBalance(t, "0")
	})

	t.Run("credit adjustment funds the account", func(t *testing.T) {
		body := marchallObj(t, map[string]interface{}{
			"amount":      "500",
			"direction":   "credit",
			"note":        "parent deposit",
			"request_key": "adj-fay-1",
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/finance/students/"+fay.ID+"/adjustments", bursarToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
		}
		checkBalance(t, "500")
	})

	t.Run("account payment draws on the balance", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/finance/students/"+fay.ID+"/payments/canteen", bursarToken, payBody("150", "can-fay-4", "account"))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
		}
		checkBalance(t, "350")
	})

	t.Run("insufficient balance", func(t *testing.T) {
		body := marchallObj(t, map[string]interface{}{
			"amount":      "5000",
			"direction":   "debit",
			"note":        "refund",
			"request_key": "adj-fay-2",
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/finance/students/"+fay.ID+"/adjustments", bursarToken, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "account balance is insufficient"}),
		}, rec)
		checkBalance(t, "350")
	})

	t.Run("ledger lists every movement", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/finance/students/"+fay.ID+"/ledger", bursarToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var entries []finance.LedgerEntry
		if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
			t.Fatalf("unmarshalling ledger: %v", err)
		}
		wantKinds := []string{finance.EntryPayment, finance.EntryAdjustment, finance.EntryPayment}
		if len(entries) != len(wantKinds) {
			t.Fatalf("len(entries) = %d; want %d", len(entries), len(wantKinds))
		}
		for i, kind := range wantKinds {
			if entries[i].Kind != kind {
				t.Errorf("entries[%d].Kind = %q; want %q", i, entries[i].Kind, kind)
			}
			if entries[i].CreatedBy != bursar.Username {
				t.Errorf("entries[%d].CreatedBy = %q; want %q", i, entries[i].CreatedBy, bursar.Username)
			}
		}
	})
}

func Test_financeApi_feeStructureAdmin(t *testing.T) {
	bursar := testutil.CreateUser(t, usrRepo, "Bursar", "fsbursar", "fsbursar@test.cd", "", []string{user.RoleAdminBursar}, true)
	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "fsteach", "fsteach@test.cd", "", []string{user.RoleTeacher}, true)

	bursarToken := getToken(t, bursar)
	teacherToken := getToken(t, teacher)

	cls := testutil.CreateClass(t, schoolRepo, "Form 5", 5)
	term := testutil.CreateTerm(t, schoolRepo, "Term 2", "2023-2024", parseDate(t, "2024-01-08"), parseDate(t, "2024-04-05"))

	var fs finance.FeeStructure

	t.Run("create fee structure", func(t *testing.T) {
		body := marchallObj(t, map[string]interface{}{
			"class_id": cls.ID,
			"term_id":  term.ID,
			"session":  "2023-2024",
			"due_date": "2024-02-01T00:00:00Z",
			"items": []map[string]interface{}{
				{"category": "tuition", "amount": "900"},
			},
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/finance/fee-structures", bursarToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &fs); err != nil {
			t.Fatalf("unmarshalling fee structure: %v", err)
		}
	})

	itemsBody := marchallObj(t, map[string]interface{}{
		"items": []map[string]interface{}{
			{"category": "tuition", "amount": "950"},
			{"category": "sports", "amount": "100"},
		},
	})

	t.Run("item edits require admin", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/finance/fee-structures/"+fs.ID, teacherToken, itemsBody)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, rec)
	})

	t.Run("edit line items", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/finance/fee-structures/"+fs.ID, bursarToken, itemsBody)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var updated finance.FeeStructure
		if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
			t.Fatalf("unmarshalling fee structure: %v", err)
		}
		if len(updated.Items) != 2 {
			t.Fatalf("len(updated.Items) = %d; want 2", len(updated.Items))
		}
		if updated.ClassID != fs.ClassID || updated.Session != fs.Session {
			t.Errorf("class/session changed on item edit: %+v", updated)
		}
	})

	t.Run("empty item list rejected", func(t *testing.T) {
		body := marchallObj(t, map[string]interface{}{"items": []map[string]interface{}{}})
		req, rec := newAuthRequest(http.MethodPut, "/v1/finance/fee-structures/"+fs.ID, bursarToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusBadRequest, rec.Body.String())
		}
	})

	t.Run("delete requires admin", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/finance/fee-structures/"+fs.ID, teacherToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, rec)
	})

	t.Run("delete fee structure", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/finance/fee-structures/"+fs.ID, bursarToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusNoContent, rec.Body.String())
		}

		req, rec = newAuthRequest(http.MethodGet, "/v1/finance/fee-structures/"+fs.ID, bursarToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "fee structure not found"}),
		}, rec)
	})
}
