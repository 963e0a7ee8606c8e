package user

// User is the authenticated caller identity supplied by the fronting auth
// layer. The service never authenticates; it only trusts the id it is given.
type User struct {
	Id          string
	DisplayName string
	Email       string
}
