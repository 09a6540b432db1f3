package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"scuola/internal/core"
	"scuola/internal/lock"
	"scuola/internal/sheets"
)

const recentTransactionsLimit = 50

// FeeService keeps the append-only fee and expense ledgers.
type FeeService struct {
	base
}

type (
	PaymentRequest struct {
		AdmissionNo string
		Amount      core.Money
		Mode        string
		Remarks     string
		// Date defaults to today.
		Date string
	}

	FeeSummary struct {
		AdmissionNo string            `json:"admissionNo"`
		TotalFees   core.Money        `json:"totalFees"`
		PaidFees    core.Money        `json:"paidFees"`
		DueFees     core.Money        `json:"dueFees"`
		History     []core.FeePayment `json:"history"`
	}

	FeeDashboard struct {
		Year               int               `json:"year"`
		Month              int               `json:"month"`
		MonthlyCollection  core.Money        `json:"monthlyCollection"`
		MonthlyExpenses    core.Money        `json:"monthlyExpenses"`
		RecentTransactions []core.FeePayment `json:"recentTransactions"`
	}
)

var (
	feesRef     = sheets.Master(sheets.Fees)
	expensesRef = sheets.Master(sheets.Expenses)
)

// RecordPayment appends a payment and returns it with its receipt number.
func (s *FeeService) RecordPayment(ctx context.Context, req PaymentRequest) (core.FeePayment, error) {
	req.AdmissionNo = strings.TrimSpace(req.AdmissionNo)
	if err := required("admissionNo", req.AdmissionNo); err != nil {
		return core.FeePayment{}, err
	}
	if req.Amount.Cents <= 0 {
		return core.FeePayment{}, fmt.Errorf("%w: amount must be positive", core.ErrInvalidAmount)
	}
	date := s.today()
	if req.Date != "" {
		d, err := core.ParseDate(req.Date)
		if err != nil {
			return core.FeePayment{}, err
		}
		date = d.String()
	}
	mode := req.Mode
	if mode == "" {
		mode = "Cash"
	}
	p := core.FeePayment{
		AdmissionNo: req.AdmissionNo,
		Amount:      req.Amount,
		Date:        date,
		Mode:        mode,
		Remarks:     req.Remarks,
	}
	err := s.locker.WithLock(ctx, lock.FeesKey(req.AdmissionNo), func() error {
		p.ReceiptNo = newID("RCT")
		p.RecordedAt = s.timestamp()
		err := s.append(ctx, feesRef, feeRow(p))
		if errors.Is(err, sheets.ErrDuplicateKey) {
			p.ReceiptNo = newID("RCT")
			err = s.append(ctx, feesRef, feeRow(p))
		}
		return err
	})
	if err != nil {
		return core.FeePayment{}, err
	}
	s.events().LogFeeCollected(ctx, p.AdmissionNo, p.ReceiptNo, p.Amount.Cents)
	return p, nil
}

// StudentSummary sums a student's payments. DueFees is total minus paid and
// goes negative on overpayment.
func (s *FeeService) StudentSummary(ctx context.Context, admissionNo string, totalFees core.Money) (FeeSummary, error) {
	admissionNo = strings.TrimSpace(admissionNo)
	if err := required("admissionNo", admissionNo); err != nil {
		return FeeSummary{}, err
	}
	rows, err := s.rows(ctx, feesRef)
	if err != nil {
		return FeeSummary{}, err
	}
	sum := FeeSummary{AdmissionNo: admissionNo, TotalFees: totalFees, History: []core.FeePayment{}}
	for _, r := range rows {
		p := feeFromRow(r)
		if p.AdmissionNo != admissionNo {
			continue
		}
		sum.PaidFees = sum.PaidFees.Add(p.Amount)
		sum.History = append(sum.History, p)
	}
	sum.DueFees = totalFees.Sub(sum.PaidFees)
	return sum, nil
}

// MonthlyDashboard totals the current month's collection and lists the most
// recent transactions, newest first.
func (s *FeeService) MonthlyDashboard(ctx context.Context) (FeeDashboard, error) {
	now := s.now()
	dash := FeeDashboard{Year: now.Year(), Month: int(now.Month()), RecentTransactions: []core.FeePayment{}}

	rows, err := s.rows(ctx, feesRef)
	if err != nil {
		return FeeDashboard{}, err
	}
	for _, r := range rows {
		p := feeFromRow(r)
		if inMonth(p.Date, dash.Year, dash.Month) {
			dash.MonthlyCollection = dash.MonthlyCollection.Add(p.Amount)
		}
	}
	for i := len(rows) - 1; i >= 0 && len(dash.RecentTransactions) < recentTransactionsLimit; i-- {
		dash.RecentTransactions = append(dash.RecentTransactions, feeFromRow(rows[i]))
	}

	expenses, err := s.ListExpenses(ctx, dash.Year, dash.Month)
	if err != nil {
		return FeeDashboard{}, err
	}
	for _, e := range expenses {
		dash.MonthlyExpenses = dash.MonthlyExpenses.Add(e.Amount)
	}
	return dash, nil
}

func inMonth(date string, year, month int) bool {
	d, err := core.ParseDate(date)
	if err != nil {
		return false
	}
	return d.Year() == year && d.Month() == month
}

func (s *FeeService) AddExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if e.Date == "" {
		e.Date = s.today()
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	d, _ := core.ParseDate(e.Date)
	e.Date = d.String()
	if e.Mode == "" {
		e.Mode = "Cash"
	}
	err := s.locker.WithLock(ctx, lock.TableKey(string(sheets.Expenses)), func() error {
		e.ReceiptNo = newID("EXP")
		e.RecordedAt = s.timestamp()
		return s.append(ctx, expensesRef, expenseRow(e))
	})
	if err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

// ListExpenses returns expenses of a month, or all of them when month is 0.
func (s *FeeService) ListExpenses(ctx context.Context, year, month int) ([]core.Expense, error) {
	rows, err := s.rows(ctx, expensesRef)
	if err != nil {
		return nil, err
	}
	out := make([]core.Expense, 0, len(rows))
	for _, r := range rows {
		e := expenseFromRow(r)
		if month != 0 && !inMonth(e.Date, year, month) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *FeeService) DeleteExpense(ctx context.Context, receiptNo string) error {
	if err := required("receiptNo", receiptNo); err != nil {
		return err
	}
	return s.deleteByKey(ctx, sheets.Expenses, "expense", receiptNo)
}
