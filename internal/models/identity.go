package models

import "time"

// Role represents the closed set of portal roles.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// Valid reports whether the role belongs to the closed set.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return true
	}
	return false
}

// Gender follows the Indonesian school convention (L = male, P = female).
type Gender string

const (
	GenderMale   Gender = "L"
	GenderFemale Gender = "P"
)

// Identity is the stored user record. One document per registered person in
// the `users` collection, keyed by a generated id.
type Identity struct {
	ID         string `bson:"_id" json:"id"`
	Name       string `bson:"name" json:"name"`
	Email      string `bson:"email" json:"email"`
	Role       Role   `bson:"role" json:"role"`
	Classroom  string `bson:"classroom,omitempty" json:"classroom,omitempty"`
	Department string `bson:"department,omitempty" json:"department,omitempty"`

	// School identity numbers. NISN for students, NIP for staff. Either may be
	// empty for admin-created accounts, in which case biometric login is
	// unavailable and the password fallback applies.
	NISN string `bson:"nisn,omitempty" json:"nisn,omitempty"`
	NIS  string `bson:"nis,omitempty" json:"nis,omitempty"`
	NIP  string `bson:"nip,omitempty" json:"nip,omitempty"`

	BirthDate string `bson:"birthDate,omitempty" json:"birthDate,omitempty"`
	Gender    Gender `bson:"gender,omitempty" json:"gender,omitempty"`
	Phone     string `bson:"phone,omitempty" json:"phone,omitempty"`

	// Biometric binding. At most one credential per identity; absent until
	// registration completes.
	Credential *Credential `bson:"credential,omitempty" json:"-"`

	// Password fallback for accounts without a school identity number.
	PasswordHash string `bson:"passwordHash,omitempty" json:"-"`

	Approved  bool      `bson:"approved" json:"approved"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Credential holds the platform-authenticator key captured at registration.
type Credential struct {
	ID        string    `bson:"id" json:"id"`
	PublicKey []byte    `bson:"publicKey" json:"-"`
	SignCount uint32    `bson:"signCount" json:"-"`
	AAGUID    []byte    `bson:"aaguid,omitempty" json:"-"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// IdentityNumber returns the public login handle for this identity, if any.
func (i *Identity) IdentityNumber() string {
	if i.NISN != "" {
		return i.NISN
	}
	return i.NIP
}

// BiometricEnrolled reports whether a credential is bound.
func (i *Identity) BiometricEnrolled() bool {
	return i.Credential != nil && i.Credential.ID != ""
}

// IdentityFilter captures criteria for listing identities. The zero Role
// matches every role.
type IdentityFilter struct {
	Role     Role
	Approved *bool
	Search   string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
