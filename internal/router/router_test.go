package router

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"scuola/internal/lock"
	"scuola/internal/log"
	"scuola/internal/metrics"
	"scuola/internal/services"
	"scuola/internal/sheets/memory"
)

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	now := func() time.Time { return time.Date(2024, time.June, 15, 10, 0, 0, 0, time.UTC) }
	svc := services.New(memory.New(), lock.New(time.Second), services.Options{Now: now, Logger: log.Discard()})
	return New(svc, WithLogger(log.Discard()), WithMetrics(metrics.New()))
}

func call(t *testing.T, r *Router, body string) Response {
	t.Helper()
	resp := r.Dispatch(context.Background(), []byte(body))
	if resp.Message == "" {
		t.Fatalf("message must always be set: %+v", resp)
	}
	return resp
}

// roundTrip re-decodes Data as generic JSON.
func roundTrip(t *testing.T, resp Response) map[string]any {
	t.Helper()
	b, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func TestDispatchEnvelopeErrors(t *testing.T) {
	r := newTestRouter(t)
	cases := []struct {
		name string
		body string
		want string
	}{
		{"bad json", `{`, "Invalid request"},
		{"missing action", `{}`, "Missing required field: action"},
		{"unknown action", `{"action":"teleport"}`, "Unknown action: teleport"},
		{"missing fields", `{"action":"getAttendanceData","class":"5"}`, "Missing required fields: section, date"},
		{"bad date", `{"action":"getAttendanceData","class":"5","section":"B","date":"01/06/2024"}`, "YYYY-MM-DD"},
		{"not found", `{"action":"getStudentAttendance","admissionNo":"NOPE"}`, "student NOPE not found"},
		{"bad status", `{"action":"markAttendance","class":"5","section":"B","date":"2024-06-01","attendance":[{"admissionNo":"A1","status":"Maybe"}]}`, "invalid status"},
		{"nested missing", `{"action":"markAttendance","class":"5","section":"B","date":"2024-06-01","attendance":[{"admissionNo":"A1"}]}`, "attendance[0].status"},
		{"wrong type", `{"action":"getEmployees","includeLeft":"yes"}`, "includeLeft"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := call(t, r, tc.body)
			if resp.Success {
				t.Fatalf("expected failure, got %+v", resp)
			}
			if !strings.Contains(resp.Message, tc.want) {
				t.Fatalf("message %q does not contain %q", resp.Message, tc.want)
			}
		})
	}
}

func TestAttendanceRoundTrip(t *testing.T) {
	r := newTestRouter(t)
	resp := call(t, r, `{"action":"addStudent","admissionNo":"A1","rollNo":"1","name":"Asha","class":"5","section":"B","feesTotal":1000}`)
	if !resp.Success {
		t.Fatalf("addStudent: %s", resp.Message)
	}
	resp = call(t, r, `{"action":"markAttendance","class":"5","section":"B","date":"2024-06-01","attendance":[{"admissionNo":"A1","status":"Present"}]}`)
	if !resp.Success {
		t.Fatalf("markAttendance: %s", resp.Message)
	}
	resp = call(t, r, `{"action":"getAttendanceData","class":"5","section":"B","date":"2024-06-01"}`)
	out := roundTrip(t, resp)
	data := out["data"].(map[string]any)
	if data["isLocked"] != true {
		t.Fatalf("expected locked day: %v", data)
	}
	students := data["students"].([]any)
	if students[0].(map[string]any)["status"] != "Present" {
		t.Fatalf("unexpected students %v", students)
	}

	resp = call(t, r, `{"action":"getStudentAttendance","admissionNo":"A1"}`)
	out = roundTrip(t, resp)
	if out["data"].(map[string]any)["percentage"].(float64) != 100 {
		t.Fatalf("unexpected history %v", out["data"])
	}
}

func TestUnmarkedDayHasNullStatus(t *testing.T) {
	r := newTestRouter(t)
	call(t, r, `{"action":"addStudent","admissionNo":"A1","name":"Asha","class":"5","section":"B"}`)
	out := roundTrip(t, call(t, r, `{"action":"getAttendanceData","class":"5","section":"B","date":"2024-06-02"}`))
	st := out["data"].(map[string]any)["students"].([]any)[0].(map[string]any)
	if v, ok := st["status"]; !ok || v != nil {
		t.Fatalf("status should be present and null, got %v", st)
	}
}

func TestExportCSVNoData(t *testing.T) {
	r := newTestRouter(t)
	resp := call(t, r, `{"action":"exportAttendanceCSV","class":"9","section":"Z"}`)
	if !resp.Success || resp.Data != "" || resp.Message != "No data found for this class" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestFeesFlow(t *testing.T) {
	r := newTestRouter(t)
	call(t, r, `{"action":"addStudent","admissionNo":"A1","name":"Asha","class":"5","section":"B","feesTotal":"1000"}`)
	for _, amt := range []string{"500", "300"} {
		resp := call(t, r, `{"action":"collectFee","admissionNo":"A1","amount":`+amt+`,"mode":"Cash"}`)
		if !resp.Success || !strings.Contains(resp.Message, "RCT-") {
			t.Fatalf("collectFee: %+v", resp)
		}
	}
	out := roundTrip(t, call(t, r, `{"action":"getStudentFees","admissionNo":"A1"}`))
	data := out["data"].(map[string]any)
	if data["paidFees"].(float64) != 800 || data["dueFees"].(float64) != 200 {
		t.Fatalf("unexpected summary %v", data)
	}
	out = roundTrip(t, call(t, r, `{"action":"getStudentFees","admissionNo":"A1","totalFees":500}`))
	if out["data"].(map[string]any)["dueFees"].(float64) != -300 {
		t.Fatalf("explicit total should win and due stays unclamped: %v", out["data"])
	}

	resp := call(t, r, `{"action":"collectFee","admissionNo":"A1","amount":0}`)
	if resp.Success {
		t.Fatalf("zero amount should fail")
	}
	out = roundTrip(t, call(t, r, `{"action":"getFeeDashboard"}`))
	if out["data"].(map[string]any)["monthlyCollection"].(float64) != 800 {
		t.Fatalf("unexpected dashboard %v", out["data"])
	}
}

func TestPanicIsRecovered(t *testing.T) {
	r := newTestRouter(t)
	r.read("explode", func(context.Context, json.RawMessage) (Result, error) {
		panic("kaboom")
	})
	resp := call(t, r, `{"action":"explode"}`)
	if resp.Success || resp.Message != "Server error: kaboom" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestLoginHidesHash(t *testing.T) {
	r := newTestRouter(t)
	if resp := call(t, r, `{"action":"createUser","username":"priya","password":"secret1","role":"teacher"}`); !resp.Success {
		t.Fatalf("createUser: %s", resp.Message)
	}
	resp := call(t, r, `{"action":"login","username":"priya","password":"secret1"}`)
	if !resp.Success {
		t.Fatalf("login: %s", resp.Message)
	}
	b, _ := json.Marshal(resp)
	if strings.Contains(string(b), "$2a$") || strings.Contains(strings.ToLower(string(b)), "passwordhash") {
		t.Fatalf("hash leaked: %s", b)
	}
	resp = call(t, r, `{"action":"login","username":"priya","password":"nope"}`)
	if resp.Success || resp.Message != "Invalid username or password" {
		t.Fatalf("unexpected response %+v", resp)
	}
	resp = call(t, r, `{"action":"createUser","username":"x","password":"secret1","role":"janitor"}`)
	if resp.Success || !strings.Contains(resp.Message, "role") {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestCatalogCoversActions(t *testing.T) {
	r := newTestRouter(t)
	want := []string{
		"getAttendanceData", "markAttendance", "getStudentAttendance", "getStaffAttendanceData",
		"submitStaffAttendance", "getEmployeeAttendance", "exportAttendanceCSV", "getFeeDashboard",
		"getStudentFees", "collectFee", "removeTeacherHoliday", "notifyAbsentees", "ping",
	}
	have := map[string]bool{}
	for _, a := range r.Actions() {
		have[a] = true
	}
	for _, a := range want {
		if !have[a] {
			t.Fatalf("action %s not registered", a)
		}
	}
	if !r.IsWrite("markAttendance") || r.IsWrite("getAttendanceData") {
		t.Fatalf("write classification is wrong")
	}
}

func TestStaffAttendanceActions(t *testing.T) {
	r := newTestRouter(t)
	resp := call(t, r, `{"action":"addEmployee","name":"Anita","role":"Teacher"}`)
	if !resp.Success || !strings.Contains(resp.Message, "EMP-0001") {
		t.Fatalf("addEmployee: %+v", resp)
	}
	for i, st := range []string{"Present", "Late", "Half Day", "Absent"} {
		body := `{"action":"submitStaffAttendance","date":"2024-06-0` + string(rune('1'+i)) + `","attendance":[{"employeeId":"EMP-0001","status":"` + st + `"}]}`
		if resp := call(t, r, body); !resp.Success {
			t.Fatalf("submit %s: %s", st, resp.Message)
		}
	}
	out := roundTrip(t, call(t, r, `{"action":"getEmployeeAttendance","employeeId":"EMP-0001"}`))
	if out["data"].(map[string]any)["percentage"].(float64) != 63 {
		t.Fatalf("unexpected history %v", out["data"])
	}
}
