package iac

import "strings"

// monthlyCosts is a fixed, deliberately rough USD/month table used to flag
// change sets that stand up expensive infrastructure. Unknown types cost $0.
var monthlyCosts = []struct {
	match string
	cost  float64
}{
	{"eks_cluster", 150},
	{"eks::cluster", 150},
	{"db_instance", 100},
	{"rds::dbinstance", 100},
	{"elasticache", 75},
	{"aws_instance", 50},
	{"ec2::instance", 50},
	{"nat_gateway", 45},
	{"ec2::natgateway", 45},
	{"lb", 25},
	{"alb", 25},
	{"elasticloadbalancing", 25},
}

// monthlyCost estimates the monthly cost contribution of a resource type
func monthlyCost(resourceType string) float64 {
	rt := strings.ToLower(resourceType)
	for _, entry := range monthlyCosts {
		if strings.Contains(rt, entry.match) {
			return entry.cost
		}
	}
	return 0
}
