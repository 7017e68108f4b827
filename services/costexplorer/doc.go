// Package costexplorer assumes customer IAM roles through STS and reads
// AWS Cost Explorer data with the resulting credentials.
package costexplorer
