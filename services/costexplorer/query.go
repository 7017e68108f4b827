package costexplorer

import (
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	ce "github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer/types"

	"github.com/example/cloud-tracker/models"
)

// Metric and dimension names used in queries
const (
	MetricBlendedCost   = "BlendedCost"
	MetricUnblendedCost = "UnblendedCost"
	MetricUsageQuantity = "UsageQuantity"

	// EC2ComputeService is the SERVICE dimension value for EC2 instance usage
	EC2ComputeService = "Amazon Elastic Compute Cloud - Compute"
)

func period(q models.CostQuery) *types.DateInterval {
	return &types.DateInterval{
		Start: aws.String(q.StartDate),
		End:   aws.String(q.EndDate),
	}
}

func dimension(key types.Dimension) types.GroupDefinition {
	return types.GroupDefinition{
		Type: types.GroupDefinitionTypeDimension,
		Key:  aws.String(string(key)),
	}
}

func dimensionIs(key types.Dimension, value string) types.Expression {
	return types.Expression{
		Dimensions: &types.DimensionValues{
			Key:    key,
			Values: []string{value},
		},
	}
}

// BlendedCostInput builds the daily per-service blended cost query
func BlendedCostInput(q models.CostQuery) *ce.GetCostAndUsageInput {
	return &ce.GetCostAndUsageInput{
		TimePeriod:  period(q),
		Granularity: types.GranularityDaily,
		Metrics:     []string{MetricBlendedCost},
		GroupBy:     []types.GroupDefinition{dimension(types.DimensionService)},
	}
}

// OperatingSystemsInput lists the operating systems that ran EC2 instances in the window
func OperatingSystemsInput(q models.CostQuery) *ce.GetDimensionValuesInput {
	filter := dimensionIs(types.DimensionService, EC2ComputeService)
	return &ce.GetDimensionValuesInput{
		TimePeriod: period(q),
		Dimension:  types.DimensionOperatingSystem,
		Context:    types.ContextCostAndUsage,
		Filter:     &filter,
	}
}

// EC2UsageInput builds the monthly EC2 query for one operating system
func EC2UsageInput(q models.CostQuery, os string) *ce.GetCostAndUsageInput {
	return &ce.GetCostAndUsageInput{
		TimePeriod:  period(q),
		Granularity: types.GranularityMonthly,
		Metrics:     []string{MetricUnblendedCost, MetricUsageQuantity},
		Filter: &types.Expression{
			And: []types.Expression{
				dimensionIs(types.DimensionService, EC2ComputeService),
				dimensionIs(types.DimensionOperatingSystem, os),
			},
		},
		GroupBy: []types.GroupDefinition{
			dimension(types.DimensionInstanceType),
			dimension(types.DimensionRegion),
		},
	}
}

// ParseBlendedCost flattens a blended cost page. A missing metric counts as 0.
func ParseBlendedCost(out *ce.GetCostAndUsageOutput) []models.ServiceCost {
	var costs []models.ServiceCost
	for _, result := range out.ResultsByTime {
		date := startOf(result)
		for _, group := range result.Groups {
			costs = append(costs, models.ServiceCost{
				Date:    date,
				Service: key(group, 0),
				Amount:  amount(group, MetricBlendedCost),
			})
		}
	}
	return costs
}

// ParseEC2Usage flattens an EC2 usage page grouped by instance type and region
func ParseEC2Usage(out *ce.GetCostAndUsageOutput, os string) []models.EC2Cost {
	var usage []models.EC2Cost
	for _, result := range out.ResultsByTime {
		p := startOf(result)
		for _, group := range result.Groups {
			usage = append(usage, models.EC2Cost{
				Period:        p,
				InstanceType:  key(group, 0),
				Region:        key(group, 1),
				OS:            os,
				Cost:          amount(group, MetricUnblendedCost),
				UsageQuantity: amount(group, MetricUsageQuantity),
			})
		}
	}
	return usage
}

func startOf(result types.ResultByTime) string {
	if result.TimePeriod == nil {
		return ""
	}
	return aws.ToString(result.TimePeriod.Start)
}

func key(group types.Group, i int) string {
	if i < len(group.Keys) {
		return group.Keys[i]
	}
	return ""
}

func amount(group types.Group, metric string) float64 {
	v, ok := group.Metrics[metric]
	if !ok || v.Amount == nil {
		return 0
	}
	f, err := strconv.ParseFloat(*v.Amount, 64)
	if err != nil {
		return 0
	}
	return f
}
