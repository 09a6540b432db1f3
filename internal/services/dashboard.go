package services

import (
	"context"

	"golang.org/x/sync/errgroup"

	"scuola/internal/core"
)

// DashboardService aggregates headline numbers from the other services.
type DashboardService struct {
	students   *StudentService
	employees  *EmployeeService
	attendance *AttendanceService
	fees       *FeeService
	now        Clock
}

type DashboardStats struct {
	Date                 string     `json:"date"`
	ActiveStudents       int        `json:"activeStudents"`
	ActiveEmployees      int        `json:"activeEmployees"`
	PresentToday         int        `json:"presentToday"`
	AbsentToday          int        `json:"absentToday"`
	AttendancePercentage int        `json:"attendancePercentage"`
	MonthlyCollection    core.Money `json:"monthlyCollection"`
	MonthlyExpenses      core.Money `json:"monthlyExpenses"`
}

// Stats gathers the counts concurrently.
func (s *DashboardService) Stats(ctx context.Context) (DashboardStats, error) {
	stats := DashboardStats{Date: core.DateOf(s.now()).String()}
	g, gctx := errgroup.WithContext(ctx)

	var students []core.Student
	g.Go(func() error {
		var err error
		students, err = s.students.List(gctx, StudentFilter{})
		return err
	})
	g.Go(func() error {
		employees, err := s.employees.List(gctx, false)
		stats.ActiveEmployees = len(employees)
		return err
	})
	g.Go(func() error {
		dash, err := s.fees.MonthlyDashboard(gctx)
		stats.MonthlyCollection = dash.MonthlyCollection
		stats.MonthlyExpenses = dash.MonthlyExpenses
		return err
	})
	if err := g.Wait(); err != nil {
		return DashboardStats{}, err
	}
	stats.ActiveStudents = len(students)

	// One log read per class-section that has active students.
	classes := make(map[[2]string]bool)
	for _, st := range students {
		classes[[2]string{st.Class, st.Section}] = true
	}
	for cs := range classes {
		ref, _ := classRefs(cs[0], cs[1])
		rows, err := s.attendance.rows(ctx, ref)
		if err != nil {
			return DashboardStats{}, err
		}
		for _, r := range rows {
			if attSchema.Value(r, "Date") != stats.Date {
				continue
			}
			switch attSchema.Value(r, "Status") {
			case string(core.Present):
				stats.PresentToday++
			case string(core.Absent):
				stats.AbsentToday++
			}
		}
	}
	stats.AttendancePercentage = core.StudentPercentage(stats.PresentToday, stats.AbsentToday)
	return stats, nil
}
