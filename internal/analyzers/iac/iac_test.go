package iac

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftgate/driftgate/internal/analyzers"
	"github.com/driftgate/driftgate/internal/config"
	"github.com/driftgate/driftgate/internal/models"
)

// mapFetcher serves content from a map keyed by "ref:path"
type mapFetcher map[string][]byte

func (m mapFetcher) Fetch(_ context.Context, path, ref string) ([]byte, error) {
	return m[ref+":"+path], nil
}

func testContext(cfg *config.Config, files mapFetcher, changed ...models.ChangedFile) *analyzers.Context {
	if cfg == nil {
		cfg = config.Default()
	}
	return &analyzers.Context{
		ChangeSet: &models.ChangeSet{BaseRef: "base", HeadRef: "head", Files: changed},
		Fetcher:   files,
		Config:    cfg,
		Logger:    slog.Default(),
	}
}

func ingressRule(cidr string) map[string]any {
	return map[string]any{
		"protocol":    "tcp",
		"from_port":   443,
		"to_port":     443,
		"cidr_blocks": []any{cidr},
	}
}

func TestComparePropertiesCIDROpened(t *testing.T) {
	before := map[string]any{"ingress": []any{ingressRule("10.0.0.0/8")}}
	after := map[string]any{"ingress": []any{ingressRule("0.0.0.0/0")}}

	props := CompareProperties("aws_security_group.web", before, after)
	require.Len(t, props, 1)
	assert.Equal(t,
		`PROPERTY_MODIFIED: aws_security_group.web.ingress[0].cidr_blocks: ["10.0.0.0/8"] → ["0.0.0.0/0"]`,
		props[0].Token)
	assert.True(t, props[0].Security)
}

func TestComparePropertiesRuleAddedAndRemoved(t *testing.T) {
	ssh := map[string]any{
		"protocol":    "tcp",
		"from_port":   22,
		"to_port":     22,
		"cidr_blocks": []any{"10.0.0.0/8"},
	}
	before := map[string]any{"ingress": []any{ingressRule("10.0.0.0/8")}}
	after := map[string]any{"ingress": []any{ingressRule("10.0.0.0/8"), ssh}}

	props := CompareProperties("aws_security_group.web", before, after)
	require.Len(t, props, 1)
	assert.Contains(t, props[0].Token, "PROPERTY_ADDED:")
	assert.True(t, props[0].Security, "ingress path is security sensitive")
}

func TestComparePropertiesScalarAndNested(t *testing.T) {
	before := map[string]any{
		"instance_type": "t3.micro",
		"tags":          map[string]any{"env": "staging"},
		"monitoring":    true,
	}
	after := map[string]any{
		"instance_type": "m5.large",
		"tags":          map[string]any{"env": "production"},
	}

	props := CompareProperties("aws_instance.app", before, after)
	tokens := make([]string, 0, len(props))
	for _, pc := range props {
		tokens = append(tokens, pc.Token)
	}
	assert.Contains(t, tokens, `PROPERTY_MODIFIED: aws_instance.app.instance_type: "t3.micro" → "m5.large"`)
	assert.Contains(t, tokens, `PROPERTY_MODIFIED: aws_instance.app.tags.env: "staging" → "production"`)
	assert.Contains(t, tokens, `PROPERTY_REMOVED: aws_instance.app.monitoring: true`)
}

const planCIDROpened = `{
  "resource_changes": [
    {
      "address": "aws_security_group.web",
      "type": "aws_security_group",
      "change": {
        "actions": ["update"],
        "before": {"ingress": [{"protocol": "tcp", "from_port": 443, "to_port": 443, "cidr_blocks": ["10.0.0.0/8"]}]},
        "after":  {"ingress": [{"protocol": "tcp", "from_port": 443, "to_port": 443, "cidr_blocks": ["0.0.0.0/0"]}]}
      }
    }
  ]
}`

const planBaseSG = `{
  "resource_changes": [
    {
      "address": "aws_security_group.web",
      "type": "aws_security_group",
      "change": {"actions": ["update"], "before": {}, "after": {}}
    }
  ]
}`

func TestAnalyzeTerraformPlanSecurityGroupChange(t *testing.T) {
	ac := testContext(nil,
		mapFetcher{
			"base:infra/tfplan.json": []byte(planBaseSG),
			"head:infra/tfplan.json": []byte(planCIDROpened),
		},
		models.ChangedFile{Path: "infra/tfplan.json", Status: models.StatusModified},
	)

	findings, err := New().Analyze(context.Background(), ac)
	require.NoError(t, err)
	require.Len(t, findings, 1)

	f := findings[0]
	assert.Equal(t, models.FindingTypeInfrastructure, f.Type)
	assert.Equal(t, models.SeverityHigh, f.Severity)
	assert.Contains(t, f.Changes,
		`PROPERTY_MODIFIED: aws_security_group.web.ingress[0].cidr_blocks: ["10.0.0.0/8"] → ["0.0.0.0/0"]`)
	assert.Contains(t, f.Changes, "SECURITY_GROUP_CHANGE: aws_security_group.web")
	assert.Contains(t, f.Entities, "aws_security_group.web")
}

const planNewInfra = `{
  "resource_changes": [
    {
      "address": "aws_eks_cluster.main",
      "type": "aws_eks_cluster",
      "change": {"actions": ["create"], "before": null, "after": {}}
    },
    {
      "address": "aws_db_instance.primary",
      "type": "aws_db_instance",
      "change": {"actions": ["create"], "before": null, "after": {}}
    }
  ]
}`

func TestAnalyzeTerraformPlanCostIncrease(t *testing.T) {
	cfg := config.Default()
	cfg.CostThreshold = 200
	ac := testContext(cfg,
		mapFetcher{"head:tfplan.json": []byte(planNewInfra)},
		models.ChangedFile{Path: "tfplan.json", Status: models.StatusAdded},
	)

	findings, err := New().Analyze(context.Background(), ac)
	require.NoError(t, err)
	require.Len(t, findings, 1)

	f := findings[0]
	assert.Contains(t, f.Changes, "RESOURCE_ADDITION: aws_eks_cluster.main")
	assert.Contains(t, f.Changes, "RESOURCE_ADDITION: aws_db_instance.primary")
	assert.Contains(t, f.Changes, "COST_INCREASE: Estimated $250/month")
	require.NotNil(t, f.Metadata)
	assert.Equal(t, 250.0, f.Metadata.CostImpact)
}

func TestAnalyzeTerraformPlanResourceDeletion(t *testing.T) {
	ac := testContext(nil,
		mapFetcher{
			"base:tfplan.json": []byte(planBaseSG),
			"head:tfplan.json": []byte(`{"resource_changes": []}`),
		},
		models.ChangedFile{Path: "tfplan.json", Status: models.StatusModified},
	)

	findings, err := New().Analyze(context.Background(), ac)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Contains(t, findings[0].Changes, "SECURITY_GROUP_DELETION: aws_security_group.web")
}

const cfBase = `Resources:
  Database:
    Type: AWS::RDS::DBInstance
    DeletionPolicy: Retain
    Properties:
      AllocatedStorage: 100
`

const cfHead = `Resources:
  Database:
    Type: AWS::RDS::DBInstance
    Properties:
      AllocatedStorage: 50
`

func TestAnalyzeCloudFormationDeletionPolicy(t *testing.T) {
	ac := testContext(nil,
		mapFetcher{
			"base:stacks/cloudformation.yaml": []byte(cfBase),
			"head:stacks/cloudformation.yaml": []byte(cfHead),
		},
		models.ChangedFile{Path: "stacks/cloudformation.yaml", Status: models.StatusModified},
	)

	findings, err := New().Analyze(context.Background(), ac)
	require.NoError(t, err)
	require.Len(t, findings, 1)

	f := findings[0]
	assert.Contains(t, f.Changes, "DELETION_POLICY_CHANGE: Database: DeletionPolicy Retain → (default)")
	assert.Contains(t, f.Changes, `PROPERTY_MODIFIED: Database.AllocatedStorage: 100 → 50`)
	assert.Contains(t, f.Entities, "Database")
}

const k8sManifestYAML = `apiVersion: v1
kind: Service
metadata:
  name: web
spec:
  type: LoadBalancer
---
apiVersion: apps/v1
kind: Deployment
metadata:
  name: worker
spec:
  replicas: 2
  template:
    spec:
      containers:
        - name: worker
          securityContext:
            privileged: true
`

func TestAnalyzeKubernetesManifest(t *testing.T) {
	ac := testContext(nil,
		mapFetcher{"head:k8s/deploy.yaml": []byte(k8sManifestYAML)},
		models.ChangedFile{Path: "k8s/deploy.yaml", Status: models.StatusModified},
	)

	findings, err := New().Analyze(context.Background(), ac)
	require.NoError(t, err)
	require.Len(t, findings, 1)

	f := findings[0]
	assert.Contains(t, f.Changes, "PUBLIC_SERVICE: web exposes type LoadBalancer")
	assert.Contains(t, f.Changes, "NO_RESOURCE_LIMITS: container worker in worker")
	assert.Contains(t, f.Changes, "PRIVILEGED_CONTAINER: container worker in worker")
	assert.Contains(t, f.Entities, "service/web")
	assert.Contains(t, f.Entities, "deployment/worker")
}

func TestAnalyzeKubernetesIgnoresNonManifest(t *testing.T) {
	ac := testContext(nil,
		mapFetcher{"head:k8s/values.yaml": []byte("replicaCount: 3\nimage: nginx\n")},
		models.ChangedFile{Path: "k8s/values.yaml", Status: models.StatusModified},
	)

	findings, err := New().Analyze(context.Background(), ac)
	require.NoError(t, err)
	assert.Empty(t, findings)
}

const hclOpenCIDR = `resource "aws_security_group" "web" {
  ingress {
    from_port   = 443
    to_port     = 443
    protocol    = "tcp"
    cidr_blocks = ["0.0.0.0/0"]
  }
}

resource "aws_db_instance" "primary" {
  deletion_protection = false
  publicly_accessible = true
}
`

func TestAnalyzeHCLChecks(t *testing.T) {
	ac := testContext(nil,
		mapFetcher{"head:infra/main.tf": []byte(hclOpenCIDR)},
		models.ChangedFile{Path: "infra/main.tf", Status: models.StatusModified},
	)

	findings, err := New().Analyze(context.Background(), ac)
	require.NoError(t, err)
	require.Len(t, findings, 1)

	f := findings[0]
	assert.Equal(t, models.SeverityHigh, f.Severity)
	assert.Contains(t, f.Changes, "OPEN_CIDR: cidr_blocks includes 0.0.0.0/0")
	assert.Contains(t, f.Changes, "DELETION_PROTECTION_DISABLED: deletion_protection = false")
	assert.Contains(t, f.Changes, "PUBLIC_ACCESS: publicly_accessible set to true")
	assert.ElementsMatch(t, []string{"aws_security_group.web", "aws_db_instance.primary"}, f.Entities)
}

func TestMonthlyCost(t *testing.T) {
	assert.Equal(t, 150.0, monthlyCost("aws_eks_cluster"))
	assert.Equal(t, 100.0, monthlyCost("AWS::RDS::DBInstance"))
	assert.Equal(t, 45.0, monthlyCost("aws_nat_gateway"))
	assert.Equal(t, 0.0, monthlyCost("aws_s3_bucket"))
}
