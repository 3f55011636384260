// Package sample generates the CSV files used to seed a records store.
package sample

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

// File names written by WriteDir.
const (
	StudentsFile = "students.csv"
	CoursesFile  = "courses.csv"
)

var (
	StudentColumns = []string{"first_name", "last_name", "email", "dob"}
	CourseColumns  = []string{"course_name", "course_code", "credits"}
)

type Student struct {
	FirstName string
	LastName  string
	Email     string
	DOB       time.Time
}

type Course struct {
	Name    string
	Code    string
	Credits int
}

// Courses is the fixed course catalogue.
var Courses = []Course{
	{Name: "Database Systems", Code: "DB101", Credits: 4},
	{Name: "Python Programming", Code: "PY201", Credits: 5},
	{Name: "Data Structures", Code: "CS301", Credits: 4},
}

// Generator produces fake students. The same Seed and Now give the same output.
type Generator struct {
	Seed int64
	// Now anchors the student ages. Zero means time.Now().
	Now time.Time
	// MinAge and MaxAge bound the student ages in years.
	MinAge, MaxAge int
}

// Students returns n students with distinct email addresses.
func (g Generator) Students(n int) []Student {
	faker := gofakeit.New(g.Seed)
	now := g.Now
	if now.IsZero() {
		now = time.Now()
	}
	minAge, maxAge := g.MinAge, g.MaxAge
	if minAge <= 0 {
		minAge = 18
	}
	if maxAge < minAge {
		maxAge = 30
	}
	// born between maxAge+1 years ago (exclusive) and minAge years ago
	earliest := now.AddDate(-maxAge-1, 0, 1)
	latest := now.AddDate(-minAge, 0, 0)

	// Track used values for the UNIQUE email column
	used := make(map[string]bool, n)
	out := make([]Student, 0, n)
	for attempts := 0; len(out) < n && attempts < n*10; attempts++ {
		s := Student{
			FirstName: faker.FirstName(),
			LastName:  faker.LastName(),
			Email:     strings.ToLower(faker.Email()),
			DOB:       faker.DateRange(earliest, latest),
		}
		if used[s.Email] {
			continue
		}
		used[s.Email] = true
		out = append(out, s)
	}
	return out
}

// WriteStudents writes students with a header row.
func WriteStudents(w io.Writer, students []Student) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(StudentColumns); err != nil {
		return err
	}
	for _, s := range students {
		if err := cw.Write([]string{s.FirstName, s.LastName, s.Email, s.DOB.Format("2006-01-02")}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCourses writes courses with a header row.
func WriteCourses(w io.Writer, courses []Course) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CourseColumns); err != nil {
		return err
	}
	for _, c := range courses {
		if err := cw.Write([]string{c.Name, c.Code, strconv.Itoa(c.Credits)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteDir writes StudentsFile and CoursesFile into dir, creating it if needed,
// and returns the paths written.
func (g Generator) WriteDir(dir string, students int) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{StudentsFile, func(w io.Writer) error { return WriteStudents(w, g.Students(students)) }},
		{CoursesFile, func(w io.Writer) error { return WriteCourses(w, Courses) }},
	}

	var paths []string
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := writeFile(path, f.write); err != nil {
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(fh); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}
