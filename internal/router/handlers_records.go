package router

import (
	"context"
	"encoding/json"
	"fmt"

	"scuola/internal/core"
	"scuola/internal/services"
)

type archiveParams struct {
	Reason string `json:"reason"`
}

func (r *Router) registerRecords() {
	r.write("addStudent", func(ctx context.Context, payload json.RawMessage) (Result, error) {
		var p core.Student
		if err := bind(payload, &p); err != nil {
			return Result{}, err
		}
		st, err := r.svc.Students.Add(ctx, p)
		if err != nil {
			return Result{}, err
		}
		return Result{Data: st, Message: "Student added successfully"}, nil
	})

	r.write("updateStudent", func(ctx context.Context, payload json.RawMessage) (Result, error) {
		var p core.Student
		if err := bind(payload, &p); err != nil {
			return Result{}, err
		}
		st, err := r.svc.Students.Update(ctx, p)
		if err != nil {
			return Result{}, err
		}
		return Result{Data: st, Message: "Student updated successfully"}, nil
	})

	r.read("getStudent", func(ctx context.Context, payload json.RawMessage) (Result, error) {
		var p admissionParams
		if err := bind(payload, &p); err != nil {
			return Result{}, err
		}
		st, err := r.svc.Students.Get(ctx, p.AdmissionNo)
		if err != nil {
			return Result{}, err
		}
		return Result{Data: st}, nil
	})

	r.read("getStudents", func(ctx context.Context, payload json.RawMessage) (Result, error) {
		var p struct {
			Class       string `json:"class"`
			Section     string `json:"section"`
			IncludeLeft bool   `json:"includeLeft"`
		}
		if err := bind(payload, &p); err != nil {
			return Result{}, err
		}
		list, err := r.svc.Students.List(ctx, services.StudentFilter{Class: p.Class, Section: p.Section, IncludeLeft: p.IncludeLeft})
		if err != nil {
			return Result{}, err
		}
		return Result{Data: list, Message: fmt.Sprintf("%d students", len(list))}, nil
	})

	r.write("archiveStudent", func(ctx context.Context, payload json.RawMessage) (Result, error) {
		var p struct {
			admissionParams
			archiveParams
		}
		if err := bind(payload, &p); err != nil {
			return Result{}, err
		}
		if err := r.svc.Students.Archive(ctx, p.AdmissionNo, p.Reason); err != nil {
			return Result{}, err
		}
		return Result{Message: "Student archived"}, nil
	})

	r.write("addEmployee", func(ctx context.Context, payload json.RawMessage) (Result, error) {
		var p core.Employee
		if err := bind(payload, &p); err != nil {
			return Result{}, err
		}
		e, err := r.svc.Employees.Add(ctx, p)
		if err != nil {
			return Result{}, err
		}
		return Result{Data: e, Message: "Employee added with ID " + e.EmployeeID}, nil
	})

	r.write("updateEmployee", func(ctx context.Context, payload json.RawMessage) (Result, error) {
		var p core.Employee
		if err := bind(payload, &p); err != nil {
			return Result{}, err
		}
		e, err := r.svc.Employees.Update(ctx, p)
		if err != nil {
			return Result{}, err
		}
		return Result{Data: e, Message: "Employee updated successfully"}, nil
	})

	r.read("getEmployees", func(ctx context.Context, payload json.RawMessage) (Result, error) {
		var p struct {
			IncludeLeft bool `json:"includeLeft"`
		}
		if err := bind(payload, &p); err != nil {
			return Result{}, err
		}
		list, err := r.svc.Employees.List(ctx, p.IncludeLeft)
		if err != nil {
			return Result{}, err
		}
		return Result{Data: list, Message: fmt.Sprintf("%d employees", len(list))}, nil
	})

	r.write("archiveEmployee", func(ctx context.Context, payload json.RawMessage) (Result, error) {
		var p struct {
			employeeParams
			archiveParams
		}
		if err := bind(payload, &p); err != nil {
			return Result{}, err
		}
		if err := r.svc.Employees.Archive(ctx, p.EmployeeID, p.Reason); err != nil {
			return Result{}, err
		}
		return Result{Message: "Employee archived"}, nil
	})

	r.write("createUser", func(ctx context.Context, payload json.RawMessage) (Result, error) {
		var p struct {
			Username    string `json:"username" validate:"notblank"`
			Password    string `json:"password" validate:"notblank"`
			Role        string `json:"role" validate:"oneof=admin teacher student parent"`
			LinkedID    string `json:"linkedId"`
			DisplayName string `json:"displayName"`
		}
		if err := bind(payload, &p); err != nil {
			return Result{}, err
		}
		u, err := r.svc.Users.Create(ctx, services.NewUser{
			Username: p.Username, Password: p.Password, Role: p.Role, LinkedID: p.LinkedID, DisplayName: p.DisplayName,
		})
		if err != nil {
			return Result{}, err
		}
		return Result{Data: u, Message: "User created"}, nil
	})

	r.read("login", func(ctx context.Context, payload json.RawMessage) (Result, error) {
		var p struct {
			Username string `json:"username" validate:"notblank"`
			Password string `json:"password" validate:"notblank"`
		}
		if err := bind(payload, &p); err != nil {
			return Result{}, err
		}
		u, err := r.svc.Users.Login(ctx, p.Username, p.Password)
		if err != nil {
			return Result{}, err
		}
		return Result{Data: u, Message: "Welcome " + displayName(u)}, nil
	})

	r.read("getUsers", func(ctx context.Context, _ json.RawMessage) (Result, error) {
		list, err := r.svc.Users.List(ctx)
		if err != nil {
			return Result{}, err
		}
		return Result{Data: list}, nil
	})

	r.write("deleteUser", func(ctx context.Context, payload json.RawMessage) (Result, error) {
		var p struct {
			Username string `json:"username" validate:"notblank"`
		}
		if err := bind(payload, &p); err != nil {
			return Result{}, err
		}
		if err := r.svc.Users.Delete(ctx, p.Username); err != nil {
			return Result{}, err
		}
		return Result{Message: "User deleted"}, nil
	})

	r.read("getDashboardStats", func(ctx context.Context, _ json.RawMessage) (Result, error) {
		stats, err := r.svc.Dashboard.Stats(ctx)
		if err != nil {
			return Result{}, err
		}
		return Result{Data: stats}, nil
	})
}

func displayName(u core.User) string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}
