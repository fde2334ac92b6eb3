// Package i18n holds the fr/en message catalog.
package i18n

import "strings"

// DefaultLang is used when nothing better is known.
const DefaultLang = "fr"

var catalog = map[string]map[string]string{
	"fr": {
		"required":             "Requis",
		"too_short":            "Trop court",
		"must_not_be_negative": "Ne doit pas être négatif",
		"out_of_range":         "Hors limites",
		"invalid_currency":     "Devise invalide",
		"not_found":            "Introuvable",
		"before_issue_date":    "Antérieure à la date d'émission",
		"unknown_theme":        "Thème inconnu",
		"email_taken":          "Adresse déjà utilisée",
		"invalid":              "Valeur invalide",

		"error.not_available":      "Ce document n'est pas disponible.",
		"error.unavailable":        "Service momentanément indisponible, réessayez plus tard.",
		"error.internal":           "Une erreur est survenue.",
		"error.invalid_input":      "Données invalides.",
		"error.invalid_transition": "Cette action n'est pas possible dans l'état actuel du document.",
		"error.not_editable":       "Ce document ne peut plus être modifié.",
		"error.forbidden":          "Action non autorisée.",
		"error.unauthorized":       "Authentification requise.",
		"error.bad_credentials":    "Email ou mot de passe incorrect.",

		"gate.password_required": "Ce document est protégé par un mot de passe.",
		"gate.wrong_password":    "Mot de passe incorrect.",
		"gate.locked":            "Trop de tentatives. Réessayez dans %d minutes.",

		"doc.brief":      "Devis",
		"doc.invoice":    "Facture",
		"doc.number":     "Numéro",
		"doc.issue_date": "Date d'émission",
		"doc.due_date":   "Échéance",
		"doc.client":     "Client",
		"doc.notes":      "Notes",
		"doc.status":     "Statut",

		"item.description": "Désignation",
		"item.quantity":    "Quantité",
		"item.unit_price":  "Prix unitaire",
		"item.total":       "Total",

		"totals.subtotal": "Total HT",
		"totals.tax":      "TVA",
		"totals.total":    "Total TTC",

		"action.unlock":  "Déverrouiller",
		"action.approve": "Accepter",
		"action.reject":  "Refuser",
		"action.reason":  "Motif du refus",
		"action.print":   "Imprimer",
		"field.password": "Mot de passe",

		"status.draft":     "Brouillon",
		"status.sent":      "Envoyé",
		"status.approved":  "Accepté",
		"status.rejected":  "Refusé",
		"status.converted": "Converti",
		"status.paid":      "Payée",

		"notice.approved": "Merci, le devis a été accepté.",
		"notice.rejected": "Votre refus a bien été transmis.",
	},
	"en": {
		"required":             "Required",
		"too_short":            "Too short",
		"must_not_be_negative": "Must not be negative",
		"out_of_range":         "Out of range",
		"invalid_currency":     "Invalid currency",
		"not_found":            "Not found",
		"before_issue_date":    "Before the issue date",
		"unknown_theme":        "Unknown theme",
		"email_taken":          "Email already in use",
		"invalid":              "Invalid value",

		"error.not_available":      "This document is not available.",
		"error.unavailable":        "Service temporarily unavailable, please retry later.",
		"error.internal":           "Something went wrong.",
		"error.invalid_input":      "Invalid input.",
		"error.invalid_transition": "This action is not possible in the document's current state.",
		"error.not_editable":       "This document can no longer be edited.",
		"error.forbidden":          "Action not allowed.",
		"error.unauthorized":       "Authentication required.",
		"error.bad_credentials":    "Wrong email or password.",

		"gate.password_required": "This document is password protected.",
		"gate.wrong_password":    "Wrong password.",
		"gate.locked":            "Too many attempts. Try again in %d minutes.",

		"doc.brief":      "Quote",
		"doc.invoice":    "Invoice",
		"doc.number":     "Number",
		"doc.issue_date": "Issue date",
		"doc.due_date":   "Due date",
		"doc.client":     "Client",
		"doc.notes":      "Notes",
		"doc.status":     "Status",

		"item.description": "Description",
		"item.quantity":    "Quantity",
		"item.unit_price":  "Unit price",
		"item.total":       "Total",

		"totals.subtotal": "Subtotal",
		"totals.tax":      "Tax",
		"totals.total":    "Total",

		"action.unlock":  "Unlock",
		"action.approve": "Approve",
		"action.reject":  "Reject",
		"action.reason":  "Reason for rejecting",
		"action.print":   "Print",
		"field.password": "Password",

		"status.draft":     "Draft",
		"status.sent":      "Sent",
		"status.approved":  "Approved",
		"status.rejected":  "Rejected",
		"status.converted": "Converted",
		"status.paid":      "Paid",

		"notice.approved": "Thank you, the quote has been approved.",
		"notice.rejected": "Your rejection has been sent.",
	},
}

// Supported reports whether lang has a catalog.
func Supported(lang string) bool {
	_, ok := catalog[lang]
	return ok
}

// T translates code. Unknown languages use the default catalog; unknown
// codes are returned unchanged.
func T(lang, code string) string {
	if msgs, ok := catalog[lang]; ok {
		if s, ok := msgs[code]; ok {
			return s
		}
	}
	if s, ok := catalog[DefaultLang][code]; ok {
		return s
	}
	return code
}

// Translator binds T to one language, for templates.
func Translator(lang string) func(string) string {
	return func(code string) string { return T(lang, code) }
}

// DetectLanguage picks a supported language from an Accept-Language header.
// Only the primary tag of the first entry is considered.
func DetectLanguage(header string) string {
	first := strings.TrimSpace(strings.Split(header, ",")[0])
	first = strings.Split(first, ";")[0]
	primary := strings.ToLower(strings.Split(first, "-")[0])
	if Supported(primary) {
		return primary
	}
	return DefaultLang
}
