package service

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/shopspring/decimal"
)

const agreementDateLayout = "1/2/2006"

var draftAgreementTmpl = template.Must(template.New("draft").Parse(strings.TrimSpace(`
SERVICE AGREEMENT

This Agreement is made on {{.Date}} between {{.Provider}} ("Provider") and {{.ClientName}} ("Client").

1. SERVICES
Provider agrees to deliver the digital services described in the "{{.TierName}}" package. Services are performed as an independent contractor.

2. PAYMENT
Full payment of ${{.Price}} USD is required upfront to commence work.

3. INTELLECTUAL PROPERTY
Upon full payment, Client shall own all rights, title, and interest in the final deliverables created specifically for Client. Provider retains ownership of pre-existing materials and methodologies.

4. CONFIDENTIALITY
(a) Definition: "Confidential Information" includes business plans, technical data, trade secrets, customer lists, credentials, and proprietary methodologies.
(b) Mutual Obligations: Both parties agree to protect each other's confidential information with the same care used for their own.
(c) Exceptions: Does not apply to publicly available info, independently developed info, lawfully received info, or legally required disclosures.
(d) Duration: Confidentiality obligations survive for 2 years after project completion.

5. LIMITATION OF LIABILITY
To the fullest extent permitted by law, Provider's total liability shall not exceed the total fees paid by Client. Provider is not liable for indirect or consequential damages.

6. INDEMNIFICATION
Client agrees to indemnify and hold Provider harmless against any claims, damages, or expenses arising from materials provided by Client (e.g., images, text) that infringe on third-party rights.

7. PORTFOLIO USAGE
Provider retains the right to reproduce, publish, and display the deliverables in Provider's portfolios and websites for the purpose of recognition of creative excellence or professional advancement.

8. NON-EXCLUSIVITY
This Agreement does not create an exclusive relationship. Provider is free to provide similar services to other clients, including competitors of Client.

9. FORCE MAJEURE
Provider is not liable for any failure or delay in performance due to causes beyond reasonable control, including acts of God, internet outages, or illness.

10. TERMINATION
Either party may terminate if the other materially breaches terms. Refunds are not provided for work already performed.

11. GOVERNING LAW
This Agreement is governed by the laws of the Provider's principal place of business.
{{- if .HostingName}}

12. HOSTING SERVICES ADDENDUM
(a) Scope: Provider agrees to maintain the hosting environment, SSL certificates, and server availability as defined in the selected "{{.HostingName}}" tier.
(b) Availability: Provider aims for 99.9% service uptime. Scheduled maintenance will be communicated in advance.
(c) Cancellation: Hosting is billed monthly. Client may cancel at any time via the customer portal. Access continues until the end of the current billing cycle. No refunds for partial months.
{{- end}}
`)))

var finalAgreementTmpl = template.Must(template.New("final").Parse(strings.TrimSpace(`
SERVICE AGREEMENT

This Agreement is made on {{.Date}} between {{.Provider}} ("Provider") and the Client associated with Order #{{.OrderID}} ("Client").

1. SERVICES
Provider agrees to deliver the services described in the "{{.Description}}" package.

2. PAYMENT
Client has paid a total of ${{.AmountPaid}} USD.

3. RELATIONSHIP OF PARTIES
Provider is an independent contractor. Nothing in this Agreement shall be construed to create a partnership, joint venture, or employer-employee relationship.

4. INTELLECTUAL PROPERTY
Upon full payment, Client shall own all rights, title, and interest in the final deliverables created specifically for Client. Provider retains ownership of any pre-existing materials, tools, or methodologies used.

5. CONFIDENTIALITY
(a) Definition: "Confidential Information" includes all non-public information disclosed by either party, including but not limited to: business plans, technical data, product ideas, trade secrets, customer lists, pricing information, login credentials, and proprietary methodologies.
(b) Mutual Obligations: Both Provider and Client agree to hold each other's Confidential Information in strict confidence, using at least the same degree of care used to protect their own confidential information.
(c) Exceptions: This obligation does not apply to information that: (i) was already publicly available, (ii) was independently developed without use of the other party's information, (iii) was lawfully received from a third party, or (iv) is required to be disclosed by law or court order.
(d) Duration: These confidentiality obligations shall survive for two (2) years following the completion or termination of this Agreement.

6. WARRANTIES & LIMITATION OF LIABILITY
Provider warrants that Services will be performed in a professional manner. EXCEPT AS EXPRESSLY STATED, PROVIDER MAKES NO WARRANTIES, EXPRESS OR IMPLIED.
TO THE FULLEST EXTENT PERMITTED BY LAW, PROVIDER'S TOTAL LIABILITY UNDER THIS AGREEMENT SHALL NOT EXCEED THE TOTAL FEES PAID BY CLIENT. PROVIDER SHALL NOT BE LIABLE FOR ANY INDIRECT, CONSEQUENTIAL, OR INCIDENTAL DAMAGES.

7. TERMINATION
Either party may terminate this Agreement if the other party materially breaches its terms.

8. GOVERNING LAW
This Agreement shall be governed by the laws of the Provider's principal place of business.

9. ENTIRE AGREEMENT
This document serves as the binding confirmation of the services and terms agreed to by the parties.
`)))

type draftAgreement struct {
	Date        string
	Provider    string
	ClientName  string
	TierName    string
	Price       string
	HostingName string
}

type finalAgreement struct {
	Date        string
	Provider    string
	OrderID     uint
	Description string
	AmountPaid  string
}

// renderDraftAgreement produces the pre-payment agreement stored on a new order.
func renderDraftAgreement(provider string, now time.Time, clientName, tierName string, price decimal.Decimal, hostingName string) (string, error) {
	return render(draftAgreementTmpl, draftAgreement{
		Date:        now.Format(agreementDateLayout),
		Provider:    provider,
		ClientName:  clientName,
		TierName:    tierName,
		Price:       price.String(),
		HostingName: hostingName,
	})
}

// renderFinalAgreement uses the amount the provider actually charged, in minor units.
func renderFinalAgreement(provider string, now time.Time, orderID uint, description string, amountTotal int64) (string, error) {
	if description == "" {
		description = "Selected Tier"
	}
	return render(finalAgreementTmpl, finalAgreement{
		Date:        now.Format(agreementDateLayout),
		Provider:    provider,
		OrderID:     orderID,
		Description: description,
		AmountPaid:  fromCents(amountTotal).String(),
	})
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s agreement: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

func toCents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func fromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
