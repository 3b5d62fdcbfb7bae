// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

// Package types provides shared type definitions used across Rampart
// gateway components. This file defines deployment mode configuration
// for SaaS vs self-hosted deployments.
package types

// DeploymentMode represents the deployment type
type DeploymentMode string

const (
	// DeploymentModeSaaS is for multi-tenant SaaS deployments
	DeploymentModeSaaS DeploymentMode = "saas"
	// DeploymentModeSelfHosted is for single-tenant self-hosted deployments
	DeploymentModeSelfHosted DeploymentMode = "selfhosted"
)

// String returns the string representation of the DeploymentMode
func (m DeploymentMode) String() string {
	return string(m)
}

// IsValid returns true if the DeploymentMode is a valid known value
func (m DeploymentMode) IsValid() bool {
	switch m {
	case DeploymentModeSaaS, DeploymentModeSelfHosted:
		return true
	default:
		return false
	}
}

// RequiresStrictSecrets reports whether this deployment mode must refuse
// to boot with development-default secrets.
func (m DeploymentMode) RequiresStrictSecrets() bool {
	return m == DeploymentModeSaaS
}
