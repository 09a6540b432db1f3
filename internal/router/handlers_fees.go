package router

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"scuola/internal/core"
	"scuola/internal/services"
)

type admissionParams struct {
	AdmissionNo string `json:"admissionNo" validate:"notblank"`
}

type employeeParams struct {
	EmployeeID string `json:"employeeId" validate:"notblank"`
}

func (r *Router) registerFees() {
	r.read("getFeeDashboard", func(ctx context.Context, _ json.RawMessage) (Result, error) {
		dash, err := r.svc.Fees.MonthlyDashboard(ctx)
		if err != nil {
			return Result{}, err
		}
		return Result{Data: dash}, nil
	})

	r.read("getStudentFees", func(ctx context.Context, payload json.RawMessage) (Result, error) {
		var p struct {
			admissionParams
			TotalFees *core.Money `json:"totalFees"`
		}
		if err := bind(payload, &p); err != nil {
			return Result{}, err
		}
		var total core.Money
		if p.TotalFees != nil {
			total = *p.TotalFees
		} else {
			st, err := r.svc.Students.Get(ctx, p.AdmissionNo)
			if err != nil {
				return Result{}, err
			}
			total = st.FeesTotal
		}
		sum, err := r.svc.Fees.StudentSummary(ctx, p.AdmissionNo, total)
		if err != nil {
			return Result{}, err
		}
		return Result{Data: sum}, nil
	})

	r.write("collectFee", func(ctx context.Context, payload json.RawMessage) (Result, error) {
		var p struct {
			admissionParams
			Amount  core.Money `json:"amount"`
			Mode    string     `json:"mode"`
			Remarks string     `json:"remarks"`
			Date    string     `json:"date" validate:"omitempty,datetime=2006-01-02"`
		}
		if err := bind(payload, &p); err != nil {
			return Result{}, err
		}
		pay, err := r.svc.Fees.RecordPayment(ctx, services.PaymentRequest{
			AdmissionNo: p.AdmissionNo, Amount: p.Amount, Mode: p.Mode, Remarks: p.Remarks, Date: p.Date,
		})
		if err != nil {
			return Result{}, err
		}
		return Result{Data: pay, Message: "Fee collected successfully. Receipt: " + pay.ReceiptNo}, nil
	})

	r.write("addExpense", func(ctx context.Context, payload json.RawMessage) (Result, error) {
		var p struct {
			Category    string     `json:"category" validate:"notblank"`
			Amount      core.Money `json:"amount"`
			Date        string     `json:"date" validate:"omitempty,datetime=2006-01-02"`
			Mode        string     `json:"mode"`
			EmployeeID  string     `json:"employeeId"`
			Description string     `json:"description" validate:"max=200"`
		}
		if err := bind(payload, &p); err != nil {
			return Result{}, err
		}
		e, err := r.svc.Fees.AddExpense(ctx, core.Expense{
			Category: p.Category, Amount: p.Amount, Date: p.Date, Mode: p.Mode, EmployeeID: p.EmployeeID, Description: p.Description,
		})
		if err != nil {
			return Result{}, err
		}
		return Result{Data: e, Message: "Expense recorded. Receipt: " + e.ReceiptNo}, nil
	})

	r.read("getExpenses", func(ctx context.Context, payload json.RawMessage) (Result, error) {
		var p struct {
			Year  int `json:"year" validate:"omitempty,gte=2000"`
			Month int `json:"month" validate:"omitempty,min=1,max=12"`
		}
		if err := bind(payload, &p); err != nil {
			return Result{}, err
		}
		if p.Month != 0 && p.Year == 0 {
			p.Year = time.Now().Year()
		}
		list, err := r.svc.Fees.ListExpenses(ctx, p.Year, p.Month)
		if err != nil {
			return Result{}, err
		}
		return Result{Data: list, Message: fmt.Sprintf("%d expenses", len(list))}, nil
	})

	r.write("deleteExpense", func(ctx context.Context, payload json.RawMessage) (Result, error) {
		var p struct {
			ReceiptNo string `json:"receiptNo" validate:"notblank"`
		}
		if err := bind(payload, &p); err != nil {
			return Result{}, err
		}
		if err := r.svc.Fees.DeleteExpense(ctx, p.ReceiptNo); err != nil {
			return Result{}, err
		}
		return Result{Message: "Expense deleted"}, nil
	})
}
