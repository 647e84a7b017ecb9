package rmiam

import (
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/iam"
	"github.com/aws/aws-sdk-go/service/iam/iamiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockIAMClient struct {
	iamiface.IAMAPI
	roles    map[string]string
	profiles map[string][]string
	policies map[string]string
	attached map[string]string
}

func newMockIAMClient() *mockIAMClient {
	return &mockIAMClient{
		roles:    map[string]string{},
		profiles: map[string][]string{},
		policies: map[string]string{},
		attached: map[string]string{},
	}
}

func noSuchEntity() error {
	return awserr.New(iam.ErrCodeNoSuchEntityException, "not found", nil)
}

func (m *mockIAMClient) GetRole(in *iam.GetRoleInput) (*iam.GetRoleOutput, error) {
	doc, ok := m.roles[*in.RoleName]
	if !ok {
		return nil, noSuchEntity()
	}
	return &iam.GetRoleOutput{Role: &iam.Role{
		Arn:                      aws.String("arn:" + *in.RoleName),
		AssumeRolePolicyDocument: aws.String(doc),
	}}, nil
}

func (m *mockIAMClient) CreateRole(in *iam.CreateRoleInput) (*iam.CreateRoleOutput, error) {
	m.roles[*in.RoleName] = *in.AssumeRolePolicyDocument
	return &iam.CreateRoleOutput{Role: &iam.Role{Arn: aws.String("arn:" + *in.RoleName)}}, nil
}

func (m *mockIAMClient) AttachRolePolicy(in *iam.AttachRolePolicyInput) (*iam.AttachRolePolicyOutput, error) {
	m.attached[*in.RoleName] = *in.PolicyArn
	return &iam.AttachRolePolicyOutput{}, nil
}

func (m *mockIAMClient) DetachRolePolicy(in *iam.DetachRolePolicyInput) (*iam.DetachRolePolicyOutput, error) {
	delete(m.attached, *in.RoleName)
	return &iam.DetachRolePolicyOutput{}, nil
}

func (m *mockIAMClient) PutRolePolicy(in *iam.PutRolePolicyInput) (*iam.PutRolePolicyOutput, error) {
	m.policies[*in.RoleName] = *in.PolicyDocument
	return &iam.PutRolePolicyOutput{}, nil
}

func (m *mockIAMClient) DeleteRolePolicy(in *iam.DeleteRolePolicyInput) (*iam.DeleteRolePolicyOutput, error) {
	if _, ok := m.policies[*in.RoleName]; !ok {
		return nil, noSuchEntity()
	}
	delete(m.policies, *in.RoleName)
	return &iam.DeleteRolePolicyOutput{}, nil
}

func (m *mockIAMClient) GetInstanceProfile(in *iam.GetInstanceProfileInput) (*iam.GetInstanceProfileOutput, error) {
	roles, ok := m.profiles[*in.InstanceProfileName]
	if !ok {
		return nil, noSuchEntity()
	}
	profile := &iam.InstanceProfile{}
	for _, r := range roles {
		profile.Roles = append(profile.Roles, &iam.Role{RoleName: aws.String(r)})
	}
	return &iam.GetInstanceProfileOutput{InstanceProfile: profile}, nil
}

func (m *mockIAMClient) CreateInstanceProfile(in *iam.CreateInstanceProfileInput) (*iam.CreateInstanceProfileOutput, error) {
	m.profiles[*in.InstanceProfileName] = []string{}
	return &iam.CreateInstanceProfileOutput{}, nil
}

func (m *mockIAMClient) AddRoleToInstanceProfile(in *iam.AddRoleToInstanceProfileInput) (*iam.AddRoleToInstanceProfileOutput, error) {
	m.profiles[*in.InstanceProfileName] = append(m.profiles[*in.InstanceProfileName], *in.RoleName)
	return &iam.AddRoleToInstanceProfileOutput{}, nil
}

func (m *mockIAMClient) RemoveRoleFromInstanceProfile(in *iam.RemoveRoleFromInstanceProfileInput) (*iam.RemoveRoleFromInstanceProfileOutput, error) {
	if _, ok := m.profiles[*in.InstanceProfileName]; !ok {
		return nil, noSuchEntity()
	}
	m.profiles[*in.InstanceProfileName] = nil
	return &iam.RemoveRoleFromInstanceProfileOutput{}, nil
}

func (m *mockIAMClient) DeleteInstanceProfile(in *iam.DeleteInstanceProfileInput) (*iam.DeleteInstanceProfileOutput, error) {
	delete(m.profiles, *in.InstanceProfileName)
	return &iam.DeleteInstanceProfileOutput{}, nil
}

func (m *mockIAMClient) DeleteRole(in *iam.DeleteRoleInput) (*iam.DeleteRoleOutput, error) {
	if _, ok := m.roles[*in.RoleName]; !ok {
		return nil, noSuchEntity()
	}
	delete(m.roles, *in.RoleName)
	return &iam.DeleteRoleOutput{}, nil
}

func TestDeployPermissions(t *testing.T) {
	mock := newMockIAMClient()
	client := &IAMClient{mock}

	err := client.DeployPermissions("EMR_DefaultRole", "EMR_EC2_DefaultRole", "cs144students")
	require.NoError(t, err)

	assert.Equal(t, AssumePolicyDocument("elasticmapreduce.amazonaws.com"), mock.roles["EMR_DefaultRole"])
	assert.Equal(t, AssumePolicyDocument("ec2.amazonaws.com"), mock.roles["EMR_EC2_DefaultRole"])
	assert.Equal(t, ServicePolicyARN, mock.attached["EMR_DefaultRole"])
	assert.Contains(t, mock.policies["EMR_EC2_DefaultRole"], "arn:aws:s3:::cs144students/*")
	assert.Equal(t, []string{"EMR_EC2_DefaultRole"}, mock.profiles["EMR_EC2_DefaultRole"])

	// a second deployment must not add the role to the profile twice
	err = client.DeployPermissions("EMR_DefaultRole", "EMR_EC2_DefaultRole", "cs144students")
	require.NoError(t, err)
	assert.Len(t, mock.profiles["EMR_EC2_DefaultRole"], 1)
}

func TestDeletePermissions(t *testing.T) {
	mock := newMockIAMClient()
	client := &IAMClient{mock}

	require.NoError(t, client.DeployPermissions("svc", "ec2", "bucket"))
	require.NoError(t, client.DeletePermissions("svc", "ec2"))

	assert.Empty(t, mock.roles)
	assert.Empty(t, mock.profiles)
	assert.Empty(t, mock.policies)
	assert.Empty(t, mock.attached)

	// deleting again is a no-op
	assert.NoError(t, client.DeletePermissions("svc", "ec2"))
}
