package sheets

import (
	"errors"
	"testing"
)

func TestEveryTableHasSchema(t *testing.T) {
	for _, tbl := range Tables() {
		s, err := SchemaFor(tbl)
		if err != nil {
			t.Fatalf("%s: %v", tbl, err)
		}
		if len(s.Headers) == 0 {
			t.Fatalf("%s: no headers", tbl)
		}
		if s.Key != "" && s.KeyCol() < 0 {
			t.Fatalf("%s: key %q not among headers", tbl, s.Key)
		}
	}
	if _, err := SchemaFor("NOPE"); !errors.Is(err, ErrUnknownTable) {
		t.Fatalf("expected ErrUnknownTable, got %v", err)
	}
}

func TestArchiveSchemasExtendMaster(t *testing.T) {
	st := MustSchema(Students)
	ar := MustSchema(StudentsArchive)
	if len(ar.Headers) != len(st.Headers)+2 {
		t.Fatalf("archive headers: %v", ar.Headers)
	}
	if len(st.Headers) != 14 {
		t.Fatalf("archive append must not alias student headers: %v", st.Headers)
	}
}

func TestNormalize(t *testing.T) {
	s := MustSchema(StaffAttendance)
	row, err := s.Normalize(Row{"2024-06-01", "EMP-0001"})
	if err != nil || len(row) != 4 || row[2] != "" {
		t.Fatalf("padding failed: %v %v", row, err)
	}
	if _, err := s.Normalize(Row{"a", "b", "c", "d", "e"}); !errors.Is(err, ErrRowTooWide) {
		t.Fatalf("expected ErrRowTooWide, got %v", err)
	}
}

func TestNewRowAndValue(t *testing.T) {
	s := MustSchema(Fees)
	row := s.NewRow(map[string]string{"ReceiptNo": "R1", "Amount": "500.00", "Bogus": "x"})
	if s.Value(row, "Amount") != "500.00" || s.Value(row, "Mode") != "" || s.Value(row, "Bogus") != "" {
		t.Fatalf("unexpected row %v", row)
	}
}

func TestCheckKey(t *testing.T) {
	s := MustSchema(Fees)
	rows := []Row{s.NewRow(map[string]string{"ReceiptNo": "R1"})}
	if err := s.CheckKey(rows, s.NewRow(map[string]string{"ReceiptNo": "R1"})); !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	if err := s.CheckKey(rows, s.NewRow(map[string]string{"ReceiptNo": "R2"})); err != nil {
		t.Fatalf("unexpected %v", err)
	}
	if err := MustSchema(Attendance).CheckKey(nil, Row{}); err != nil {
		t.Fatalf("unkeyed tables never conflict: %v", err)
	}
}

func TestRefValidate(t *testing.T) {
	if err := Master(Students).Validate(); err != nil {
		t.Fatalf("unexpected %v", err)
	}
	if err := (Ref{Table: Attendance, Sheet: " "}).Validate(); err == nil {
		t.Fatalf("expected error for blank sheet")
	}
	if ClassSheet(" 5 ", "B") != "5-B" {
		t.Fatalf("unexpected class sheet %q", ClassSheet(" 5 ", "B"))
	}
}
