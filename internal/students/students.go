// Package students configures the students page and the enrollment wizard.
package students

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/grantdesk/grantdesk/internal/crud"
	"github.com/grantdesk/grantdesk/internal/listing"
	"github.com/grantdesk/grantdesk/internal/options"
	"github.com/grantdesk/grantdesk/internal/shared"
	"github.com/grantdesk/grantdesk/internal/wizard"
)

// Kind names the student wizard.
const Kind = "student"

// minAge is the youngest age accepted for vocational training.
const minAge = 14

// Student is a trainee enrolled in a project at a center.
type Student struct {
	ID           string `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	DocumentID   string `json:"document_id"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	BirthDate    string `json:"birth_date"`
	CenterID     string `json:"center_id"`
	ProjectID    string `json:"project_id"`
	InstructorID string `json:"instructor_id"`
	Status       string `json:"status"`
}

// FullName joins first and last name.
func (s Student) FullName() string {
	return s.FirstName + " " + s.LastName
}

// StatusChoices are the enrollment states.
var StatusChoices = []options.Option{
	{Value: "enrolled", Label: "Enrolled"},
	{Value: "graduated", Label: "Graduated"},
	{Value: "withdrawn", Label: "Withdrawn"},
}

type personal struct {
	FirstName  string `json:"first_name" validate:"required,notblank"`
	LastName   string `json:"last_name" validate:"required,notblank"`
	DocumentID string `json:"document_id" validate:"required,alphanum,min=5,max=20"`
	Email      string `json:"email,omitempty" validate:"omitempty,email"`
	Phone      string `json:"phone,omitempty" validate:"omitempty,min=6,max=20"`
	BirthDate  string `json:"birth_date" validate:"required,datetime=2006-01-02"`
}

type enrollment struct {
	CenterID     string `json:"center_id" validate:"required"`
	ProjectID    string `json:"project_id" validate:"required"`
	InstructorID string `json:"instructor_id,omitempty"`
}

type update struct {
	personal
	enrollment
	Status string `json:"status" validate:"required,oneof=enrolled graduated withdrawn"`
}

func personalFrom(values map[string]string) personal {
	return personal{
		FirstName:  values["first_name"],
		LastName:   values["last_name"],
		DocumentID: values["document_id"],
		Email:      values["email"],
		Phone:      values["phone"],
		BirthDate:  values["birth_date"],
	}
}

func enrollmentFrom(values map[string]string) enrollment {
	return enrollment{
		CenterID:     values["center_id"],
		ProjectID:    values["project_id"],
		InstructorID: values["instructor_id"],
	}
}

// NewValidator returns a validator that also checks the minimum age.
func NewValidator(now func() time.Time) *shared.Validator {
	v := shared.NewValidator()
	RegisterRules(v, now)
	return v
}

// RegisterRules adds the student rules to v.
func RegisterRules(v *shared.Validator, now func() time.Time) {
	v.RegisterTranslation("minage", "{0} must be at least 14 years ago")
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		// Embedded in update the value is read-only, so no Interface().
		raw := sl.Current().FieldByName("BirthDate").String()
		born, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return
		}
		if born.AddDate(minAge, 0, 0).After(now()) {
			sl.ReportError(raw, "birth_date", "BirthDate", "minage", "")
		}
	}, personal{})
}

var personalFields = []crud.Field{
	{Name: "first_name", Label: "First name", Required: true},
	{Name: "last_name", Label: "Last name", Required: true},
	{Name: "document_id", Label: "ID document", Required: true},
	{Name: "email", Label: "Email", Type: "email"},
	{Name: "phone", Label: "Phone", Type: "tel"},
	{Name: "birth_date", Label: "Birth date", Type: "date", Required: true},
}

// Resource configures the students page. New students go through the wizard.
func Resource(v *shared.Validator) crud.Resource[Student] {
	fields := append([]crud.Field{}, personalFields...)
	fields = append(fields,
		crud.Field{Name: "center_id", Label: "Center", Type: "select", Required: true, Source: "centers"},
		crud.Field{Name: "project_id", Label: "Project", Type: "select", Required: true, Source: "projects"},
		crud.Field{Name: "instructor_id", Label: "Instructor", Type: "select", Source: "instructors"},
		crud.Field{Name: "status", Label: "Status", Type: "select", Required: true, Choices: StatusChoices},
	)
	return crud.Resource[Student]{
		Name:     "students",
		Title:    "Students",
		Singular: "Student",
		Path:     "/students",
		List: listing.Config{
			Endpoint:    "/students",
			DefaultSort: "last_name",
			Sortable:    []string{"last_name", "document_id", "birth_date"},
			Filters:     []string{"center_id", "project_id", "status"},
		},
		Columns: []crud.Column[Student]{
			{Key: "last_name", Label: "Name", Sortable: true, Cell: Student.FullName},
			{Key: "document_id", Label: "Document", Sortable: true, Cell: func(s Student) string { return s.DocumentID }},
			{Key: "center_id", Label: "Center", Source: "centers", Cell: func(s Student) string { return s.CenterID }},
			{Key: "project_id", Label: "Project", Source: "projects", Cell: func(s Student) string { return s.ProjectID }},
			{Key: "status", Label: "Status", Kind: "badge", Cell: func(s Student) string { return options.Label(StatusChoices, s.Status) }},
		},
		Fields: fields,
		Filters: []crud.Filter{
			{Name: "center_id", Label: "Center", Source: "centers"},
			{Name: "project_id", Label: "Project", Source: "projects"},
			{Name: "status", Label: "Status", Choices: StatusChoices},
		},
		ID:    func(s Student) string { return s.ID },
		Label: Student.FullName,
		Values: func(s Student) map[string]string {
			return map[string]string{
				"first_name": s.FirstName, "last_name": s.LastName, "document_id": s.DocumentID,
				"email": s.Email, "phone": s.Phone, "birth_date": s.BirthDate,
				"center_id": s.CenterID, "project_id": s.ProjectID, "instructor_id": s.InstructorID,
				"status": s.Status,
			}
		},
		Build: func(values map[string]string, _ crud.Mode) (any, error) {
			body := update{personal: personalFrom(values), enrollment: enrollmentFrom(values), Status: values["status"]}
			return body, v.Struct(body)
		},
		Manage:  shared.ManageDirectory(),
		NewHref: "/wizards/new/" + Kind,
	}
}

// Wizard defines the enrollment flow: personal data, enrollment and
// attachments.
func Wizard(v *shared.Validator) wizard.Definition {
	personalInputs := make([]wizard.Field, 0, len(personalFields))
	for _, f := range personalFields {
		personalInputs = append(personalInputs, wizard.Field{Name: f.Name, Label: f.Label, Type: f.Type, Required: f.Required})
	}
	return wizard.Definition{
		Kind:     Kind,
		Title:    "New student",
		Resource: "/students",
		ListPath: "/students",
		Manage:   shared.ManageDirectory(),
		Steps: []wizard.Step{
			&wizard.InfoStep[personal]{
				StepKey:   "personal",
				StepTitle: "Personal information",
				Fields:    personalInputs,
				Build:     func(values map[string]string) (personal, error) { return personalFrom(values), nil },
				Validator: v,
			},
			&wizard.InfoStep[enrollment]{
				StepKey:   "enrollment",
				StepTitle: "Enrollment",
				Fields: []wizard.Field{
					{Name: "center_id", Label: "Center", Type: "select", Source: "centers", Required: true},
					{Name: "project_id", Label: "Project", Type: "select", Source: "projects", Required: true},
					{Name: "instructor_id", Label: "Instructor", Type: "select", Source: "instructors"},
				},
				Build:     func(values map[string]string) (enrollment, error) { return enrollmentFrom(values), nil },
				Validator: v,
			},
			&wizard.AttachmentStep{
				StepKey:    "attachments",
				StepTitle:  "Documents",
				UploadPath: "/files",
				EntityType: Kind,
			},
		},
	}
}
