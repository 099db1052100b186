package models

// Department is a first-level administrative division
// Backed by table `departments`
type Department struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// Municipality belongs to a department
// Backed by table `municipalities`
type Municipality struct {
	ID           int64  `json:"id" db:"id"`
	Name         string `json:"name" db:"name"`
	DepartmentID int64  `json:"department" db:"department_id"`
}

// DepartmentSeed lists the municipalities to ensure under one department
type DepartmentSeed struct {
	Name           string   `yaml:"name"`
	Municipalities []string `yaml:"municipalities"`
}

// LocationSeed is the document read by the seed-locations command
type LocationSeed struct {
	Departments []DepartmentSeed `yaml:"departments"`
}

// SeedResult counts the rows a seed run created
type SeedResult struct {
	Departments    int `json:"departments"`
	Municipalities int `json:"municipalities"`
}
