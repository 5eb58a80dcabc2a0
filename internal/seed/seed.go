package seed

import (
	"time"

	"github.com/bwmarrin/snowflake"
	examdomain "github.com/smallbiznis/campus/internal/exam/domain"
	hosteldomain "github.com/smallbiznis/campus/internal/hostel/domain"
	studentdomain "github.com/smallbiznis/campus/internal/student/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EnsureSampleData loads a small development dataset: a handful of students,
// one open exam, and two hostel rooms. Inserts are keyed on natural unique
// columns, so reruns are no-ops.
func EnsureSampleData(conn *gorm.DB, genID *snowflake.Node) error {
	students := []studentdomain.Student{
		{ID: genID.Generate(), Name: "Asha Rao", Email: "asha.rao@campus.local", Branch: "CS", Program: "BTech", Year: 2},
		{ID: genID.Generate(), Name: "Dewi Lestari", Email: "dewi.lestari@campus.local", Branch: "EE", Program: "BTech", Year: 2},
		{ID: genID.Generate(), Name: "Rafi Pratama", Email: "rafi.pratama@campus.local", Branch: "ME", Program: "BTech", Year: 3},
	}
	for i := range students {
		err := conn.Where("email = ?", students[i].Email).
			FirstOrCreate(&students[i]).Error
		if err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	exam := examdomain.Exam{
		ID:                genID.Generate(),
		Code:              "MIDTERM-2026",
		Name:              "Midterm Examination 2026",
		EligibleBranches:  datatypes.NewJSONSlice([]string{"CS", "EE"}),
		Subjects:          datatypes.NewJSONSlice([]string{"CS101", "CS102", "EE201"}),
		FeePerSubject:     100,
		RegistrationStart: now.AddDate(0, 0, -1),
		RegistrationEnd:   now.AddDate(0, 1, 0),
	}
	if err := conn.Where("code = ?", exam.Code).FirstOrCreate(&exam).Error; err != nil {
		return err
	}

	rooms := []hosteldomain.Room{
		{ID: genID.Generate(), Hostel: "North", Number: "101", Capacity: 2, IsActive: true},
		{ID: genID.Generate(), Hostel: "North", Number: "102", Capacity: 3, IsActive: true},
	}
	for i := range rooms {
		err := conn.Where("hostel = ? AND number = ?", rooms[i].Hostel, rooms[i].Number).
			FirstOrCreate(&rooms[i]).Error
		if err != nil {
			return err
		}
	}

	return nil
}
