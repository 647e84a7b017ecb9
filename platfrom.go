package rankmaniac

/*
* platform abstraction for backends that need account level resources
* (roles, profiles) before a job can be submitted
 */
type platform interface {
	Deploy() error
	Undeploy() error
}
