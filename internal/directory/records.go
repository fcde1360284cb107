// Package directory configures the people and places pages: console
// users, training centers and instructors.
package directory

// User is a console account as the backend reports it.
type User struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Email              string `json:"email"`
	Role               string `json:"role"`
	Status             string `json:"status"`
	MustChangePassword bool   `json:"must_change_password"`
}

// Center is a training center.
type Center struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Code    string `json:"code"`
	City    string `json:"city"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Status  string `json:"status"`
}

// Instructor teaches at one center.
type Instructor struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Specialty string `json:"specialty"`
	CenterID  string `json:"center_id"`
	Status    string `json:"status"`
}

// FullName joins first and last name.
func (i Instructor) FullName() string {
	switch {
	case i.FirstName == "":
		return i.LastName
	case i.LastName == "":
		return i.FirstName
	}
	return i.FirstName + " " + i.LastName
}

type userCreate struct {
	Name     string `json:"name" validate:"required,notblank,min=2"`
	Email    string `json:"email" validate:"required,email"`
	Role     string `json:"role" validate:"required,oneof=admin coordinator accountant viewer"`
	Password string `json:"password" validate:"required,min=8"`
}

type userUpdate struct {
	Name   string `json:"name" validate:"required,notblank,min=2"`
	Email  string `json:"email" validate:"required,email"`
	Role   string `json:"role" validate:"required,oneof=admin coordinator accountant viewer"`
	Status string `json:"status" validate:"required,oneof=active inactive"`
}

type centerBody struct {
	Name    string `json:"name" validate:"required,notblank,min=2"`
	Code    string `json:"code" validate:"required,alphanum,max=12"`
	City    string `json:"city" validate:"required,notblank"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty" validate:"omitempty,min=6,max=20"`
	Status  string `json:"status" validate:"required,oneof=active inactive"`
}

type instructorBody struct {
	FirstName string `json:"first_name" validate:"required,notblank"`
	LastName  string `json:"last_name" validate:"required,notblank"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone,omitempty" validate:"omitempty,min=6,max=20"`
	Specialty string `json:"specialty,omitempty"`
	CenterID  string `json:"center_id" validate:"required"`
	Status    string `json:"status" validate:"required,oneof=active inactive"`
}
