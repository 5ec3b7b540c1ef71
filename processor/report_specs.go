package processor

import (
	"fmt"
)

// Report type names accepted in pipeline configuration.
const (
	ReportTypeSales              = "sales"
	ReportTypeSubscriptionEvents = "subscription_events"
)

// RawDateLayout is the non-ISO date format the App Store API uses inside
// report rows (MM/dd/yyyy).
const RawDateLayout = "01/02/2006"

// ReportSpec is the per-report strategy object: the target schema plus the
// handful of rules that differ between report types. Everything else in the
// conformance and load path is generic.
type ReportSpec struct {
	Name   string
	Schema *ReportSchema

	// RangeColumn scopes the warehouse delete/insert replace window.
	RangeColumn string

	// HeaderRemap maps known source header spellings to their canonical
	// schema name, applied before canonicalization.
	HeaderRemap map[string]string

	// DerivedDateColumn, when set, is added to each file from the date
	// embedded in its object key rather than from row content.
	DerivedDateColumn string

	// NullDefaults replaces null values with a literal after conformance.
	NullDefaults map[string]string
}

// ReportSpecFor returns the spec for a configured report type.
func ReportSpecFor(reportType string) (ReportSpec, error) {
	switch reportType {
	case ReportTypeSales:
		return SalesReportSpec(), nil
	case ReportTypeSubscriptionEvents:
		return SubscriptionEventsReportSpec(), nil
	default:
		return ReportSpec{}, fmt.Errorf("unknown report type: %s", reportType)
	}
}

// SalesReportSpec describes the daily sales summary report.
func SalesReportSpec() ReportSpec {
	return ReportSpec{
		Name:        ReportTypeSales,
		RangeColumn: "begin_date",
		HeaderRemap: map[string]string{
			// The API returns some files with this alternate spelling.
			"Contingent App Name": "contingency_app_name",
		},
		DerivedDateColumn: "api_date",
		Schema: NewReportSchema([]Column{
			{Name: "provider", Type: StringType()},
			{Name: "provider_country", Type: StringType()},
			{Name: "sku", Type: StringType()},
			{Name: "developer", Type: StringType()},
			{Name: "title", Type: StringType()},
			{Name: "version", Type: StringType()},
			{Name: "product_type_identifier", Type: StringType()},
			{Name: "units", Type: IntegerType()},
			{Name: "developer_proceeds", Type: DecimalType(18, 2)},
			{Name: "begin_date", Type: DateType()},
			{Name: "end_date", Type: DateType()},
			{Name: "customer_currency", Type: StringType()},
			{Name: "country_code", Type: StringType()},
			{Name: "currency_of_proceeds", Type: StringType()},
			{Name: "apple_identifier", Type: StringType()},
			{Name: "customer_price", Type: DecimalType(18, 2)},
			{Name: "promo_code", Type: StringType()},
			{Name: "parent_identifier", Type: StringType()},
			{Name: "subscription", Type: StringType()},
			{Name: "period", Type: StringType()},
			{Name: "category", Type: StringType()},
			{Name: "cmb", Type: StringType()},
			{Name: "device", Type: StringType()},
			{Name: "supported_platforms", Type: StringType()},
			{Name: "proceeds_reason", Type: StringType()},
			{Name: "preserved_pricing", Type: StringType()},
			{Name: "client", Type: StringType()},
			{Name: "order_type", Type: StringType()},
			{Name: "contingency_app_name", Type: StringType()},
			{Name: "api_date", Type: DateType()},
		}),
	}
}

// SubscriptionEventsReportSpec describes the daily subscription event report.
func SubscriptionEventsReportSpec() ReportSpec {
	return ReportSpec{
		Name:        ReportTypeSubscriptionEvents,
		RangeColumn: "event_date",
		NullDefaults: map[string]string{
			"country": "US",
		},
		Schema: NewReportSchema([]Column{
			{Name: "app_apple_id", Type: StringType()},
			{Name: "app_name", Type: StringType()},
			{Name: "cancellation_reason", Type: StringType()},
			{Name: "client", Type: StringType()},
			{Name: "consecutive_paid_periods", Type: StringType()},
			{Name: "country", Type: StringType()},
			{Name: "days_before_canceling", Type: IntegerType()},
			{Name: "days_canceled", Type: IntegerType()},
			{Name: "device", Type: StringType()},
			{Name: "event", Type: StringType()},
			{Name: "event_date", Type: DateType()},
			{Name: "introductory_price_duration", Type: StringType()},
			{Name: "introductory_price_type", Type: StringType()},
			{Name: "marketing_opt_in_duration", Type: StringType()},
			{Name: "marketing_opt_in", Type: StringType()},
			{Name: "original_start_date", Type: DateType()},
			{Name: "paid_service_days_recovered", Type: StringType()},
			{Name: "preserved_pricing", Type: StringType()},
			{Name: "previous_subscription_apple_id", Type: StringType()},
			{Name: "previous_subscription_name", Type: StringType()},
			{Name: "proceeds_reason", Type: StringType()},
			{Name: "promotional_offer_id", Type: StringType()},
			{Name: "promotional_offer_name", Type: StringType()},
			{Name: "quantity", Type: IntegerType()},
			{Name: "standard_subscription_duration", Type: StringType()},
			{Name: "state", Type: StringType()},
			{Name: "subscription_apple_id", Type: StringType()},
			{Name: "subscription_duration", Type: StringType()},
			{Name: "subscription_group_id", Type: StringType()},
			{Name: "subscription_name", Type: StringType()},
			{Name: "subscription_offer_duration", Type: StringType()},
			{Name: "subscription_offer_name", Type: StringType()},
			{Name: "subscription_offer_type", Type: StringType()},
		}),
	}
}
