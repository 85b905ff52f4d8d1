package models

// Actor is the authenticated caller of a workflow operation.
type Actor struct {
	// Identity is the directory username.
	Identity string
	Name     string
	Role     Role
}
