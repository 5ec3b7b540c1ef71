package secrets

import (
	"context"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// secretsManagerAPI is the slice of the Secrets Manager client this package
// uses.
type secretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManagerStore reads credentials from AWS Secrets Manager.
type SecretsManagerStore struct {
	client secretsManagerAPI
}

func NewSecretsManagerStore(ctx context.Context, region string) (*SecretsManagerStore, error) {
	opts := []func(*config.LoadOptions) error{}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "loading AWS configuration")
	}
	return &SecretsManagerStore{client: secretsmanager.NewFromConfig(awsCfg)}, nil
}

// GetSecretString returns the plain secret value for name.
func (s *SecretsManagerStore) GetSecretString(ctx context.Context, name string) (string, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		log.Printf("SecretsManagerStore: error retrieving secret %s: %v", name, err)
		return "", errors.Wrapf(err, "retrieving secret %s", name)
	}
	if out.SecretString == nil {
		return "", errors.Errorf("secret %s has no string value", name)
	}
	return *out.SecretString, nil
}

// GetSecretJSON returns the secret value for name parsed as a JSON document.
func (s *SecretsManagerStore) GetSecretJSON(ctx context.Context, name string) (gjson.Result, error) {
	value, err := s.GetSecretString(ctx, name)
	if err != nil {
		return gjson.Result{}, err
	}
	if !gjson.Valid(value) {
		return gjson.Result{}, errors.Errorf("secret %s is not valid JSON", name)
	}
	return gjson.Parse(value), nil
}
