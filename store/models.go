package store

// AcademicYear is a labelled period scoping grade data per tenant.
type AcademicYear struct {
	ID        string `json:"id"`
	TenantID  string `json:"tenant_id,omitempty"`
	Label     string `json:"label"`
	IsCurrent bool   `json:"is_current"`
	CreatedAt string `json:"created_at"`
}

// Student is identified by (TenantID, Enrollment). Personal fields use ""
// for unknown.
type Student struct {
	ID             string `json:"id"`
	TenantID       string `json:"tenant_id,omitempty"`
	Enrollment     string `json:"enrollment"`
	Name           string `json:"name"`
	ClassLabel     string `json:"class_label,omitempty"`
	Shift          string `json:"shift,omitempty"`
	Sex            string `json:"sex,omitempty"`
	BirthDate      string `json:"birth_date,omitempty"`
	Birthplace     string `json:"birthplace,omitempty"`
	Zone           string `json:"zone,omitempty"`
	Address        string `json:"address,omitempty"`
	Guardians      string `json:"guardians,omitempty"`
	Phones         string `json:"phones,omitempty"`
	TaxID          string `json:"tax_id,omitempty"`
	SocialID       string `json:"social_id,omitempty"`
	NationalID     string `json:"national_id,omitempty"`
	PriorStatus    string `json:"prior_status,omitempty"`
	AcademicYearID string `json:"academic_year_id,omitempty"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// GradeRecord holds one subject's scores for a student in one academic
// year. Nil scores are unknown.
type GradeRecord struct {
	ID             string   `json:"id"`
	StudentID      string   `json:"student_id"`
	TenantID       string   `json:"tenant_id,omitempty"`
	AcademicYearID string   `json:"academic_year_id,omitempty"`
	Subject        string   `json:"subject"`
	SubjectKey     string   `json:"subject_key"`
	Period1        *float64 `json:"period1"`
	Period2        *float64 `json:"period2"`
	Period3        *float64 `json:"period3"`
	Total          *float64 `json:"total"`
	Recovery       *float64 `json:"recovery"`
	Absences       *int     `json:"absences"`
	Status         string   `json:"status,omitempty"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
}

// Account is a login linked to a student.
type Account struct {
	ID                 string `json:"id"`
	TenantID           string `json:"tenant_id,omitempty"`
	Username           string `json:"username"`
	PasswordHash       string `json:"-"`
	Role               string `json:"role"`
	StudentID          string `json:"student_id,omitempty"`
	MustChangePassword bool   `json:"must_change_password"`
	CreatedAt          string `json:"created_at"`
}

// Account roles.
const (
	RoleStudent = "student"
)
