package costexplorer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	ce "github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"go.uber.org/zap"

	"github.com/example/cloud-tracker/models"
)

var (
	// ErrAssumeRole is returned when STS refuses the role
	ErrAssumeRole = errors.New("assume role failed")

	// ErrRequest is returned when a Cost Explorer call fails
	ErrRequest = errors.New("cost explorer request failed")
)

// API is the subset of the Cost Explorer client used here
type API interface {
	GetCostAndUsage(ctx context.Context, params *ce.GetCostAndUsageInput, optFns ...func(*ce.Options)) (*ce.GetCostAndUsageOutput, error)
	GetDimensionValues(ctx context.Context, params *ce.GetDimensionValuesInput, optFns ...func(*ce.Options)) (*ce.GetDimensionValuesOutput, error)
}

// ClientFactory returns a Cost Explorer client acting as the given role
type ClientFactory interface {
	ForRole(ctx context.Context, roleARN, region string) (API, error)
}

// STSClientFactory assumes roles with sts:AssumeRole and caches
// credentials per role until shortly before they expire.
type STSClientFactory struct {
	base        aws.Config
	sts         stscreds.AssumeRoleAPIClient
	sessionName string

	mu    sync.Mutex
	creds map[string]*aws.CredentialsCache
}

// NewSTSClientFactory creates a factory using base for the STS calls
func NewSTSClientFactory(base aws.Config, sessionName string) *STSClientFactory {
	return NewSTSClientFactoryWithClient(base, sts.NewFromConfig(base), sessionName)
}

// NewSTSClientFactoryWithClient creates a factory with an explicit STS client
func NewSTSClientFactoryWithClient(base aws.Config, client stscreds.AssumeRoleAPIClient, sessionName string) *STSClientFactory {
	return &STSClientFactory{
		base:        base,
		sts:         client,
		sessionName: sessionName,
		creds:       make(map[string]*aws.CredentialsCache),
	}
}

// ForRole implements ClientFactory. Credentials are retrieved eagerly so a
// refused role surfaces here rather than on the first query.
func (f *STSClientFactory) ForRole(ctx context.Context, roleARN, region string) (API, error) {
	provider := f.credentialsFor(roleARN)
	if _, err := provider.Retrieve(ctx); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrAssumeRole, roleARN, err)
	}

	cfg := f.base.Copy()
	cfg.Credentials = provider
	if region != "" {
		cfg.Region = region
	}
	return ce.NewFromConfig(cfg), nil
}

func (f *STSClientFactory) credentialsFor(roleARN string) *aws.CredentialsCache {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.creds[roleARN]; ok {
		return c
	}
	c := aws.NewCredentialsCache(stscreds.NewAssumeRoleProvider(f.sts, roleARN, func(o *stscreds.AssumeRoleOptions) {
		o.RoleSessionName = f.sessionName
	}))
	f.creds[roleARN] = c
	return c
}

// Client queries cost data for a role
type Client struct {
	factory ClientFactory
	timeout time.Duration
	logger  *zap.Logger
}

// NewClient creates a new Client. A zero timeout leaves calls unbounded.
func NewClient(factory ClientFactory, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		factory: factory,
		timeout: timeout,
		logger:  logger,
	}
}

// BlendedCost returns daily blended cost per service
func (c *Client) BlendedCost(ctx context.Context, q models.CostQuery) ([]models.ServiceCost, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	api, err := c.factory.ForRole(ctx, q.RoleARN, q.Region)
	if err != nil {
		return nil, err
	}

	costs := []models.ServiceCost{}
	err = paginate(ctx, api, BlendedCostInput(q), func(out *ce.GetCostAndUsageOutput) {
		costs = append(costs, ParseBlendedCost(out)...)
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("blended cost fetched", zap.String("role_arn", q.RoleARN), zap.Int("rows", len(costs)))
	return costs, nil
}

// EC2Usage returns monthly EC2 cost and usage per instance type, region and
// operating system. Cost Explorer groups by at most two dimensions, so the
// operating systems are listed first and queried one at a time.
func (c *Client) EC2Usage(ctx context.Context, q models.CostQuery) ([]models.EC2Cost, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	api, err := c.factory.ForRole(ctx, q.RoleARN, q.Region)
	if err != nil {
		return nil, err
	}

	systems, err := operatingSystems(ctx, api, q)
	if err != nil {
		return nil, err
	}

	usage := []models.EC2Cost{}
	for _, os := range systems {
		err := paginate(ctx, api, EC2UsageInput(q, os), func(out *ce.GetCostAndUsageOutput) {
			usage = append(usage, ParseEC2Usage(out, os)...)
		})
		if err != nil {
			return nil, err
		}
	}

	c.logger.Debug("ec2 usage fetched",
		zap.String("role_arn", q.RoleARN),
		zap.Int("operating_systems", len(systems)),
		zap.Int("rows", len(usage)))
	return usage, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func operatingSystems(ctx context.Context, api API, q models.CostQuery) ([]string, error) {
	var systems []string
	input := OperatingSystemsInput(q)
	for {
		out, err := api.GetDimensionValues(ctx, input)
		if err != nil {
			return nil, requestError(err)
		}
		for _, v := range out.DimensionValues {
			if s := aws.ToString(v.Value); s != "" {
				systems = append(systems, s)
			}
		}
		if aws.ToString(out.NextPageToken) == "" {
			return systems, nil
		}
		input.NextPageToken = out.NextPageToken
	}
}

func paginate(ctx context.Context, api API, input *ce.GetCostAndUsageInput, page func(*ce.GetCostAndUsageOutput)) error {
	for {
		out, err := api.GetCostAndUsage(ctx, input)
		if err != nil {
			return requestError(err)
		}
		page(out)
		if aws.ToString(out.NextPageToken) == "" {
			return nil
		}
		input.NextPageToken = out.NextPageToken
	}
}

func requestError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrRequest, err)
	}
	return fmt.Errorf("%w: %v", ErrRequest, err)
}
