package rmiam

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/iam"
	"github.com/aws/aws-sdk-go/service/iam/iamiface"
	log "github.com/sirupsen/logrus"

	"github.com/anatomi/rankmaniac/internal/pkg/rmaws"
)

// IAMClient manages deploying the IAM roles an EMR job flow runs under
type IAMClient struct {
	iamiface.IAMAPI
}

// ServicePolicyARN is the managed policy attached to the EMR service role
const ServicePolicyARN = "arn:aws:iam::aws:policy/service-role/AmazonElasticMapReduceRole"

const rolePolicyName = "rankmaniac-permissions"

// AssumePolicyDocument returns the trust policy letting service assume a role
func AssumePolicyDocument(service string) string {
	return fmt.Sprintf(`{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Sid": "",
      "Effect": "Allow",
      "Principal": {
        "Service": [
          "%s"
        ]
      },
      "Action": "sts:AssumeRole"
    }
  ]
}`, service)
}

// InstancePolicyDocument grants cluster instances access to bucket and to
// writing their logs.
func InstancePolicyDocument(bucket string) string {
	return fmt.Sprintf(`{
    "Version": "2012-10-17",
    "Statement": [
        {
            "Effect": "Allow",
            "Action": [
                "s3:*"
            ],
            "Resource": [
                "arn:aws:s3:::%[1]s",
                "arn:aws:s3:::%[1]s/*"
            ]
        },
        {
            "Effect": "Allow",
            "Action": [
                "cloudwatch:*",
                "ec2:Describe*",
                "elasticmapreduce:Describe*",
                "elasticmapreduce:ListBootstrapActions",
                "elasticmapreduce:ListClusters",
                "elasticmapreduce:ListInstanceGroups",
                "elasticmapreduce:ListInstances",
                "elasticmapreduce:ListSteps"
            ],
            "Resource": "*"
        }
    ]
}`, bucket)
}

// NewIAMClient initializes a new IAMClient in region, or the configured
// region if empty.
func NewIAMClient(region string) (*IAMClient, error) {
	sess, err := rmaws.NewSession(rmaws.ConfigFromViper(false).WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to create iam session: %w", err)
	}
	return &IAMClient{
		iam.New(sess),
	}, nil
}

func (iamClient *IAMClient) createRole(roleName, assumeDocument string) (roleARN string, err error) {
	createParams := &iam.CreateRoleInput{
		AssumeRolePolicyDocument: aws.String(assumeDocument),
		RoleName:                 aws.String(roleName),
	}
	log.Debugf("Creating IAM role '%s'", roleName)
	role, err := iamClient.CreateRole(createParams)
	if err != nil {
		return "", err
	}
	return aws.StringValue(role.Role.Arn), nil
}

// deployRole creates/updates the role with the given name so that it can be
// assumed by service.
func (iamClient *IAMClient) deployRole(roleName, service string) (roleARN string, err error) {
	assumeDocument := AssumePolicyDocument(service)
	exists, err := iamClient.GetRole(&iam.GetRoleInput{
		RoleName: aws.String(roleName),
	})

	// Role already exists
	if exists != nil && err == nil {
		if aws.StringValue(exists.Role.AssumeRolePolicyDocument) != assumeDocument {
			log.Debugf("Updating IAM role '%s'", roleName)
			_, err = iamClient.UpdateAssumeRolePolicy(&iam.UpdateAssumeRolePolicyInput{
				PolicyDocument: aws.String(assumeDocument),
				RoleName:       aws.String(roleName),
			})
			return aws.StringValue(exists.Role.Arn), err
		}
		log.Debugf("IAM Role '%s' already exists", roleName)
		return aws.StringValue(exists.Role.Arn), nil
	}
	if err != nil && !isNoSuchEntity(err) {
		return "", err
	}

	return iamClient.createRole(roleName, assumeDocument)
}

// deployInstanceProfile makes sure an instance profile named after the role
// exists and carries it.
func (iamClient *IAMClient) deployInstanceProfile(roleName string) error {
	exists, err := iamClient.GetInstanceProfile(&iam.GetInstanceProfileInput{
		InstanceProfileName: aws.String(roleName),
	})
	if err != nil {
		if !isNoSuchEntity(err) {
			return err
		}
		log.Debugf("Creating instance profile '%s'", roleName)
		if _, err = iamClient.CreateInstanceProfile(&iam.CreateInstanceProfileInput{
			InstanceProfileName: aws.String(roleName),
		}); err != nil {
			return err
		}
	} else {
		for _, role := range exists.InstanceProfile.Roles {
			if aws.StringValue(role.RoleName) == roleName {
				return nil
			}
		}
	}

	_, err = iamClient.AddRoleToInstanceProfile(&iam.AddRoleToInstanceProfileInput{
		InstanceProfileName: aws.String(roleName),
		RoleName:            aws.String(roleName),
	})
	return err
}

// DeployPermissions creates/updates the EMR service role and the EC2 instance
// role (with its instance profile) so that job flows can run steps reading
// and writing bucket.
func (iamClient *IAMClient) DeployPermissions(serviceRole, instanceRole, bucket string) error {
	if _, err := iamClient.deployRole(serviceRole, "elasticmapreduce.amazonaws.com"); err != nil {
		return err
	}
	log.Debugf("Attaching policy '%s' to '%s'", ServicePolicyARN, serviceRole)
	if _, err := iamClient.AttachRolePolicy(&iam.AttachRolePolicyInput{
		PolicyArn: aws.String(ServicePolicyARN),
		RoleName:  aws.String(serviceRole),
	}); err != nil {
		return err
	}

	if _, err := iamClient.deployRole(instanceRole, "ec2.amazonaws.com"); err != nil {
		return err
	}
	log.Debugf("Putting policy '%s'", rolePolicyName)
	if _, err := iamClient.PutRolePolicy(&iam.PutRolePolicyInput{
		PolicyName:     aws.String(rolePolicyName),
		PolicyDocument: aws.String(InstancePolicyDocument(bucket)),
		RoleName:       aws.String(instanceRole),
	}); err != nil {
		return err
	}

	return iamClient.deployInstanceProfile(instanceRole)
}

// DeletePermissions removes everything DeployPermissions created.
func (iamClient *IAMClient) DeletePermissions(serviceRole, instanceRole string) error {
	steps := []func() error{
		func() error {
			_, err := iamClient.RemoveRoleFromInstanceProfile(&iam.RemoveRoleFromInstanceProfileInput{
				InstanceProfileName: aws.String(instanceRole),
				RoleName:            aws.String(instanceRole),
			})
			return err
		},
		func() error {
			_, err := iamClient.DeleteInstanceProfile(&iam.DeleteInstanceProfileInput{
				InstanceProfileName: aws.String(instanceRole),
			})
			return err
		},
		func() error {
			_, err := iamClient.DeleteRolePolicy(&iam.DeleteRolePolicyInput{
				RoleName:   aws.String(instanceRole),
				PolicyName: aws.String(rolePolicyName),
			})
			return err
		},
		func() error {
			_, err := iamClient.DeleteRole(&iam.DeleteRoleInput{RoleName: aws.String(instanceRole)})
			return err
		},
		func() error {
			_, err := iamClient.DetachRolePolicy(&iam.DetachRolePolicyInput{
				PolicyArn: aws.String(ServicePolicyARN),
				RoleName:  aws.String(serviceRole),
			})
			return err
		},
		func() error {
			_, err := iamClient.DeleteRole(&iam.DeleteRoleInput{RoleName: aws.String(serviceRole)})
			return err
		},
	}

	for _, step := range steps {
		if err := step(); err != nil && !isNoSuchEntity(err) {
			return err
		}
	}
	return nil
}

func isNoSuchEntity(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), iam.ErrCodeNoSuchEntityException)
}
