package canonical

// synonymGroup maps every listed variant to one display name.
type synonymGroup struct {
	canonical string
	variants  []string
}

// Groups are applied in order; a variant claimed by an earlier group is not
// reassigned by a later one.
var synonymGroups = []synonymGroup{
	{"Single Sign On", []string{"SSO", "Single Sign-On", "Single Sign On", "Enterprise SSO", "SAML SSO", "SSO login"}},
	{"Multi Factor Authentication", []string{"MFA", "2FA", "Two-Factor Authentication", "Two Factor Auth", "Multi-Factor Authentication", "Multifactor Authentication", "2-Step Verification"}},
	{"Role Based Access Control", []string{"RBAC", "Role-Based Access Control", "Role Based Permissions", "Granular Permissions", "User Roles"}},
	{"Audit Log", []string{"Audit Logs", "Audit Trail", "Audit Trails", "Activity Log", "Activity Logs"}},
	{"Encryption At Rest", []string{"Encryption at Rest", "Data Encryption", "AES-256 Encryption", "At-Rest Encryption"}},
	{"SCIM Provisioning", []string{"SCIM", "User Provisioning", "Automated Provisioning", "SCIM Provisioning"}},
	{"REST API", []string{"REST API", "RESTful API", "Public API", "Open API", "API Access"}},
	{"GraphQL API", []string{"GraphQL", "GraphQL API"}},
	{"Webhooks", []string{"Webhook", "Webhooks", "Outgoing Webhooks", "Event Webhooks"}},
	{"SDK", []string{"SDK", "SDKs", "Client Libraries", "Client Library"}},
	{"Workflow Automation", []string{"Workflow Automation", "Workflows", "Automated Workflows", "Automation Rules", "No-Code Automation"}},
	{"Custom Dashboards", []string{"Custom Dashboards", "Dashboards", "Dashboard Builder"}},
	{"Reporting", []string{"Reports", "Reporting", "Custom Reports", "Report Builder"}},
	{"Real Time Analytics", []string{"Real-Time Analytics", "Realtime Analytics", "Live Analytics"}},
	{"Data Export", []string{"Data Export", "CSV Export", "Export to CSV", "Export Data"}},
	{"Mobile App", []string{"Mobile App", "Mobile Apps", "iOS App", "Android App", "Native Mobile Apps"}},
	{"Uptime SLA", []string{"SLA", "Uptime SLA", "99.9% Uptime", "Service Level Agreement"}},
	{"Auto Scaling", []string{"Autoscaling", "Auto-Scaling", "Auto Scaling", "Elastic Scaling"}},
	{"Referral Program", []string{"Referral Program", "Referrals", "Refer a Friend"}},
	{"A/B Testing", []string{"A/B Testing", "AB Testing", "Split Testing", "Experimentation"}},
	{"Multi Tenancy", []string{"Multi-Tenant", "Multitenancy", "Multi Tenancy", "Multi-Tenancy"}},
	{"Self Hosting", []string{"Self-Hosted", "Self Hosted", "On-Premise", "On-Premises", "On Prem"}},
	{"AI Assistant", []string{"AI Assistant", "AI Copilot", "Copilot", "Chat Assistant", "AI Chatbot"}},
	{"Zapier Integration", []string{"Zapier", "Zapier Integration", "Zapier Connector"}},
	{"Slack Integration", []string{"Slack", "Slack Integration", "Slack App"}},
	{"24/7 Support", []string{"24/7 Support", "24x7 Support", "Round the Clock Support", "Around the Clock Support"}},
}

// synonymTable maps capability keys to display names. Built once at package init.
var synonymTable = buildSynonymTable(synonymGroups)

func buildSynonymTable(groups []synonymGroup) map[string]string {
	table := make(map[string]string)
	for _, g := range groups {
		for _, v := range append([]string{g.canonical}, g.variants...) {
			key := capabilityKey(v)
			if key == "" {
				continue
			}
			if _, taken := table[key]; taken {
				continue
			}
			table[key] = g.canonical
		}
	}
	return table
}
