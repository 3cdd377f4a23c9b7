package repository

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Student is a portal student record.
type Student struct {
	bun.BaseModel `bun:"table:students,alias:st"`

	ID         uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	FirstName  string    `bun:"first_name,notnull" json:"firstName"`
	LastName   string    `bun:"last_name,notnull" json:"lastName"`
	Email      string    `bun:"email,notnull,unique" json:"email"`
	EnrolledAt time.Time `bun:"enrolled_at,notnull" json:"enrolledAt"`
}

// Validate checks the record before it reaches the database.
func (s Student) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.ID, validation.By(validUUID)),
		validation.Field(&s.FirstName, validation.Required, validation.Length(1, 100)),
		validation.Field(&s.LastName, validation.Required, validation.Length(1, 100)),
		validation.Field(&s.Email, validation.Required, is.Email),
	)
}

// Staff is a portal staff record.
type Staff struct {
	bun.BaseModel `bun:"table:staffs,alias:sf"`

	ID        uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	FirstName string    `bun:"first_name,notnull" json:"firstName"`
	LastName  string    `bun:"last_name,notnull" json:"lastName"`
	Email     string    `bun:"email,notnull,unique" json:"email"`
	Role      string    `bun:"role,notnull" json:"role"`
}

// Validate checks the record before it reaches the database.
func (s Staff) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.ID, validation.By(validUUID)),
		validation.Field(&s.FirstName, validation.Required),
		validation.Field(&s.LastName, validation.Required),
		validation.Field(&s.Email, validation.Required, is.Email),
		validation.Field(&s.Role, validation.Required),
	)
}

// Course is a course catalog entry.
type Course struct {
	bun.BaseModel `bun:"table:courses,alias:c"`

	ID      uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Code    string    `bun:"code,notnull,unique" json:"code"`
	Title   string    `bun:"title,notnull" json:"title"`
	Credits int       `bun:"credits,notnull" json:"credits"`
}

// Validate checks the record before it reaches the database.
func (c Course) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ID, validation.By(validUUID)),
		validation.Field(&c.Code, validation.Required, validation.Length(2, 16)),
		validation.Field(&c.Title, validation.Required),
		validation.Field(&c.Credits, validation.Required, validation.Min(1), validation.Max(30)),
	)
}

// PaymentMethod is an accepted tuition payment channel.
type PaymentMethod struct {
	bun.BaseModel `bun:"table:payment_methods,alias:pm"`

	ID     uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Name   string    `bun:"name,notnull,unique" json:"name"`
	Active bool      `bun:"active,notnull,default:true" json:"active"`
}

// Validate checks the record before it reaches the database.
func (p PaymentMethod) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ID, validation.By(validUUID)),
		validation.Field(&p.Name, validation.Required),
	)
}

// CourseRegistration links a student to a course.
type CourseRegistration struct {
	bun.BaseModel `bun:"table:course_registrations,alias:cr"`

	ID           uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	StudentID    uuid.UUID `bun:"student_id,notnull,type:uuid" json:"studentId"`
	CourseID     uuid.UUID `bun:"course_id,notnull,type:uuid" json:"courseId"`
	RegisteredAt time.Time `bun:"registered_at,notnull" json:"registeredAt"`
}

// Validate checks the record before it reaches the database.
func (r CourseRegistration) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ID, validation.By(validUUID)),
		validation.Field(&r.StudentID, validation.By(validUUID)),
		validation.Field(&r.CourseID, validation.By(validUUID)),
	)
}

// validUUID rejects the nil UUID. ozzo's Required cannot catch it because a
// [16]byte array is never "empty" by length.
func validUUID(value any) error {
	if id, ok := value.(uuid.UUID); !ok || id == uuid.Nil {
		return errors.New("must be a non-nil UUID")
	}
	return nil
}
