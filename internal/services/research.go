package services

import (
	"context"

	"github.com/northstar-audit/northstar-backend/internal/logger"
)

// ResearchService resolves the compliance rule set to audit a document
// type against.
//
// TODO: replace the built-in rule text with a Dedalus web-search agent
// fetching current SEC/FINRA guidance; the ctx/error signature is
// already shaped for that call.
type ResearchService interface {
	Rules(ctx context.Context, documentType string) (string, error)
}

type researchService struct {
	log *logger.Logger
}

func NewResearchService(baseLog *logger.Logger) ResearchService {
	return &researchService{log: baseLog.With("service", "ResearchService")}
}

func (rs *researchService) Rules(ctx context.Context, documentType string) (string, error) {
	if rules, ok := complianceRules[documentType]; ok {
		return rules, nil
	}
	rs.log.Warn("No rule set for document type, using general standards", "document_type", documentType)
	return "General financial document compliance standards apply.", nil
}

var complianceRules = map[string]string{
	"SOX 404": `SOX 404 Compliance Requirements (Sarbanes-Oxley Section 404):

1. ITGC (IT General Controls) - SOX Section 404(a), COSO Framework CC5.1
   - Must document IT controls for all financial reporting systems
   - Must have change management procedures
   - Must have access controls and logging

2. Segregation of Duties - SOX Section 404(b), PCAOB AS 2201.22
   - Transaction initiators cannot be approvers
   - Separation between accounting and custody functions
   - Independent reconciliation required

3. Access Reviews - SOX Section 404, COSO CC6.1
   - Quarterly access reviews required
   - Privileged access monitoring
   - Timely access revocation for terminated employees

4. Documentation Requirements
   - Risk assessment documentation
   - Control testing evidence
   - Management sign-off on control effectiveness

5. Financial Close Controls
   - Account reconciliation procedures
   - Journal entry review process
   - Period-end close timeline compliance`,

	"10-K": `SEC 10-K Filing Compliance Requirements:

1. Risk Factor Disclosures - SEC Regulation S-K Item 105
   - Material risks must be disclosed
   - Cybersecurity risks (if material)
   - Industry-specific risks
   - Economic and market risks

2. MD&A Requirements - SEC Regulation S-K Item 303
   - Liquidity and capital resources discussion
   - Results of operations analysis
   - Forward-looking statements with safe harbor language
   - Critical accounting estimates

3. Executive Compensation - SEC Regulation S-K Item 402
   - Compensation discussion and analysis
   - Performance metrics disclosure
   - Benchmarking disclosure
   - Perquisites and benefits disclosure

4. Financial Statement Compliance
   - GAAP conformity
   - Auditor's report inclusion
   - Management's internal control report

5. Exhibit Requirements
   - Material contracts
   - Certifications (302, 906)
   - Subsidiary list`,

	"8-K": `SEC 8-K Current Report Compliance Requirements:

1. Timely Disclosure - SEC Rule 13a-11
   - Must file within 4 business days of triggering events
   - Material events require immediate disclosure

2. Triggering Events Disclosure
   - Entry into material agreements (Item 1.01)
   - Bankruptcy or receivership (Item 1.03)
   - Material business operations changes (Item 2.01)
   - Financial obligation creation (Item 2.03)

3. Financial Statements - Item 9.01
   - Pro forma financials if required
   - Acquired company financials if acquisition
   - Exhibit compliance

4. Officer Changes - Item 5.02
   - Departure of directors/officers
   - Appointment of officers
   - Compensation arrangements`,

	"Invoice": `Invoice Compliance Requirements:

1. Invoice Documentation Standards
   - Unique invoice number required
   - Date of issue clearly stated
   - Vendor/supplier identification
   - Purchase order reference

2. Tax Compliance
   - Tax identification numbers
   - Applicable tax rates
   - Tax exemption documentation if claimed

3. Payment Terms
   - Clear payment due date
   - Accepted payment methods
   - Late payment penalties disclosed

4. Approval Workflow
   - Authorized approver signature/system
   - Budget code/cost center
   - Three-way match documentation (PO, receipt, invoice)`,
}
