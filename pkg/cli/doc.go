// Package cli implements solarpro-admin, the command-line front end to the
// settings editors.
//
// # Commands
//
// signin: start a session and print its token
//
//	solarpro-admin signin --email admin@example.com --password ...
//	export SOLARPRO_TOKEN=...
//
// nav: show the menu entries the session may see
//
//	solarpro-admin nav
//
// list: print one settings kind as a table
//
//	solarpro-admin list language
//
// create: submit a new setting through its editor
//
//	solarpro-admin create role --set name=Installer --set "description=Field installer"
//	solarpro-admin create workflow --set name=Install --config '{"steps":["survey","permit"]}'
//
// # Connection
//
// Every command takes --url, --api-key and --token, defaulting to
// SOLARPRO_API_URL, SOLARPRO_STORE_API_KEY and SOLARPRO_TOKEN. Errors are
// those reported by the editor, for example "Forbidden" for non-admin
// sessions or "config must be a JSON object" for a bad workflow document.
package cli
