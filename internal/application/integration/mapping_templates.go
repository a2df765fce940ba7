package integration

import "github.com/staffhub/backend/internal/domain/integration"

// Internal field names written by the default templates
const (
	FieldReference   = "reference"
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldStatus      = "status"
	FieldPriority    = "priority"
	FieldAssignee    = "assignee"
	FieldDueDate     = "due_date"
	FieldCostCenter  = "cost_center"
	FieldSupplier    = "supplier"
	FieldSourceKind  = "source_kind"
)

var serviceNowStates = map[string]string{
	"1": "new",
	"2": "in_progress",
	"3": "on_hold",
	"6": "resolved",
	"7": "closed",
	"8": "cancelled",
}

var serviceNowPriorities = map[string]string{
	"1": "critical",
	"2": "high",
	"3": "medium",
	"4": "low",
	"5": "low",
}

var jiraStatuses = map[string]string{
	"To Do":       "new",
	"Open":        "new",
	"In Progress": "in_progress",
	"In Review":   "in_progress",
	"Blocked":     "on_hold",
	"Done":        "closed",
}

var jiraPriorities = map[string]string{
	"Highest": "critical",
	"High":    "high",
	"Medium":  "medium",
	"Low":     "low",
	"Lowest":  "low",
}

var asanaCompletion = map[string]string{
	"true":  "closed",
	"false": "open",
}

func rename(entity, external, internal string, required bool) integration.FieldMappingSpec {
	return integration.FieldMappingSpec{
		ExternalEntity: entity,
		ExternalField:  external,
		InternalField:  internal,
		TransformType:  integration.TransformRename,
		Required:       required,
	}
}

func enum(entity, external, internal string, values map[string]string) integration.FieldMappingSpec {
	return integration.FieldMappingSpec{
		ExternalEntity: entity,
		ExternalField:  external,
		InternalField:  internal,
		TransformType:  integration.TransformEnumTranslate,
		EnumValues:     values,
	}
}

func constant(entity, internal, value string) integration.FieldMappingSpec {
	return integration.FieldMappingSpec{
		ExternalEntity: entity,
		InternalField:  internal,
		TransformType:  integration.TransformConstantDefault,
		DefaultValue:   &value,
	}
}

func serviceNowTemplate(table string) []integration.FieldMappingSpec {
	return []integration.FieldMappingSpec{
		rename(table, "number", FieldReference, true),
		rename(table, "short_description", FieldTitle, true),
		rename(table, "description", FieldDescription, false),
		enum(table, "state", FieldStatus, serviceNowStates),
		enum(table, "priority", FieldPriority, serviceNowPriorities),
		rename(table, "assigned_to.display_value", FieldAssignee, false),
		constant(table, FieldSourceKind, table),
	}
}

func jiraTemplate(issueType string) []integration.FieldMappingSpec {
	return []integration.FieldMappingSpec{
		rename(issueType, "key", FieldReference, true),
		rename(issueType, "fields.summary", FieldTitle, true),
		enum(issueType, "fields.status.name", FieldStatus, jiraStatuses),
		enum(issueType, "fields.priority.name", FieldPriority, jiraPriorities),
		rename(issueType, "fields.assignee.displayName", FieldAssignee, false),
		rename(issueType, "fields.duedate", FieldDueDate, false),
		constant(issueType, FieldSourceKind, issueType),
	}
}

// DefaultMappingTemplates returns the starter mappings for a system type.
// Operators are expected to review and validate them.
func DefaultMappingTemplates(systemType integration.SystemType) []integration.FieldMappingSpec {
	var specs []integration.FieldMappingSpec
	switch systemType {
	case integration.SystemTypeServiceNow:
		for _, table := range []string{"incident", "change_request", "problem"} {
			specs = append(specs, serviceNowTemplate(table)...)
		}
	case integration.SystemTypeJira:
		for _, issueType := range []string{"bug", "story", "task", "epic"} {
			specs = append(specs, jiraTemplate(issueType)...)
		}
	case integration.SystemTypeAsana:
		specs = []integration.FieldMappingSpec{
			rename("task", "gid", FieldReference, true),
			rename("task", "name", FieldTitle, true),
			rename("task", "notes", FieldDescription, false),
			enum("task", "completed", FieldStatus, asanaCompletion),
			rename("task", "assignee.name", FieldAssignee, false),
			rename("task", "due_on", FieldDueDate, false),
			rename("project", "gid", FieldReference, true),
			rename("project", "name", FieldTitle, true),
			rename("project", "notes", FieldDescription, false),
			rename("milestone", "gid", FieldReference, true),
			rename("milestone", "name", FieldTitle, true),
			rename("milestone", "due_on", FieldDueDate, false),
			enum("milestone", "completed", FieldStatus, asanaCompletion),
		}
	case integration.SystemTypeSAP:
		specs = []integration.FieldMappingSpec{
			rename("employee", "PersonWorkAgreement", FieldReference, true),
			rename("employee", "PersonFullName", FieldTitle, true),
			rename("employee", "CostCenter", FieldCostCenter, false),
			rename("cost_center", "CostCenter", FieldReference, true),
			rename("cost_center", "CostCenterName", FieldTitle, true),
			rename("cost_center", "CostCenterDescription", FieldDescription, false),
			rename("purchase_order", "PurchaseOrder", FieldReference, true),
			rename("purchase_order", "PurchaseOrder", FieldTitle, true),
			rename("purchase_order", "Supplier", FieldSupplier, false),
		}
	case integration.SystemTypeManual:
		specs = []integration.FieldMappingSpec{
			rename("manual_entry", "title", FieldTitle, true),
			rename("manual_entry", "description", FieldDescription, false),
			rename("manual_entry", "status", FieldStatus, false),
		}
	case integration.SystemTypeCSV:
		specs = []integration.FieldMappingSpec{
			rename("csv_row", "external_id", FieldReference, true),
			rename("csv_row", "title", FieldTitle, true),
			rename("csv_row", "description", FieldDescription, false),
		}
	}
	return specs
}
