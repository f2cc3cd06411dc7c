// Package rules holds the Mangle schema and Datalog rules the Behavioral
// Scanner asserts facts against, adapted from the teacher's
// internal/browser/honeypot.go (BrowserSchemas/HoneypotRules) to spec
// §4.2's complexity/hostility scoring algebra instead of honeypot-only
// detection. The facts asserted during a scan feed these rules; the scanner
// reads back derived predicates (is_vendor_cookie, is_vendor_script,
// is_honeypot, is_challenge_traffic, is_signin_signal) to accumulate the two
// scores.
package rules

// Schema declares every predicate the scanner asserts facts for.
const Schema = `
vendor_cookie(Name) type(name: /string).
vendor_script(Src) type(src: /string).
honeypot_input(Id) type(id: /string).
challenge_path(Url) type(url: /string).
login_button(Id) type(id: /string).
auth_overlay(Id) type(id: /string).
known_auth_host(Host) type(host: /string).
`

// Rules derives the categorical boolean signals the scanner folds into
// hostility_score/complexity_score. Expressed as Mangle Datalog exactly the
// way honeypot.go expresses is_honeypot: declarative predicates over
// asserted facts rather than imperative string scanning at the call site.
const Rules = `
is_vendor_cookie(Name) :- vendor_cookie(Name).
is_vendor_script(Src) :- vendor_script(Src).
is_honeypot(Id) :- honeypot_input(Id).
is_challenge_traffic(Url) :- challenge_path(Url).
is_signin_signal(Id) :- login_button(Id).
is_signin_signal(Id) :- auth_overlay(Id).
`

// VendorCookieNames lists the bot-defense vendor cookie names spec §4.2
// names explicitly: _abck, bm_sz, ak_bmsc, px3, pxvid, cf_clearance,
// datadome, kasada, incap_ses, visid_incap.
var VendorCookieNames = []string{
	"_abck", "bm_sz", "ak_bmsc", "px3", "pxvid",
	"cf_clearance", "datadome", "kasada", "incap_ses", "visid_incap",
}

// VendorScriptKeywords lists substrings in script src attributes that
// indicate a known bot-defense vendor is loaded.
var VendorScriptKeywords = []string{
	"cloudflare", "akamai", "perimeterx", "datadome", "kasada", "incapsula", "distil",
}

// ChallengeURLKeywords lists path substrings classifying a request as
// challenge/verification traffic.
var ChallengeURLKeywords = []string{"challenge", "verify", "/fp", "fingerprint"}

// KnownAuthHeavyHosts lists hostnames that are conventionally sign-in-gated
// even absent other signals (spec §4.2: "+30 if host is a known
// auth-heavy platform").
var KnownAuthHeavyHosts = []string{
	"linkedin.com", "facebook.com", "instagram.com", "x.com", "twitter.com",
}
