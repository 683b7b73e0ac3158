// Package editor provides the list-and-create controllers behind the admin
// configuration screens, one per settings kind.
//
// An editor loads the current records, collects form fields and submits
// them. While a submit is in flight the editor is in StateSubmitting and a
// second Submit returns ErrBusy. Required fields and workflow/form config
// documents are checked locally; a failed check never reaches the backend.
// Every failure, local or remote, is also reported through Err.
//
//	ed := editor.NewLanguageEditor(apiClient)
//	if err := ed.Load(ctx); err != nil {
//		return err
//	}
//	ed.Set("code", "de")
//	ed.Set("name", "Deutsch")
//	if _, err := ed.Submit(ctx); err != nil {
//		fmt.Println(ed.Err())
//	}
package editor
