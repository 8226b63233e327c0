package domain

// AdminSeed is the configuration surface of the admin bootstrap. All fields
// are required together.
type AdminSeed struct {
	Enabled     bool
	Email       string
	Password    string
	DisplayName string
}

// Complete reports whether seeding is on and every required field is set.
func (s AdminSeed) Complete() bool {
	return s.Enabled && s.Email != "" && s.Password != "" && s.DisplayName != ""
}
