/*
Package assuan implements the client side of the subset of the Assuan protocol needed to drive a pinentry program.

The exchange is strictly synchronous and line based:
 1. The client writes one directive ("SETDESC ...", "GETPIN", ...).
 2. The helper answers with "OK", an error line, or for GETPIN a data line "D <pin>" followed by "OK".

Passphrase quality callbacks, output device negotiation and default strings are not supported.

# Responses

A command sequence produces exactly one Response:
  - Pin: the secret entered by the user (GETPIN).
  - OK: every directive was accepted, or the dialog was confirmed.
  - NotOK: the helper declined; Reason holds the raw error line, which ParseErrorLine can split into a libgpg-error code and description.

Transport failures are reported as *IOError and never as a Response.

# Usage Example

	conn := assuan.NewConn(stdout, stdin)

	resp, err := conn.Process([]assuan.Command{
	    assuan.SetTimeout{Seconds: 60},
	    assuan.SetDescriptiveText{Text: "Unlock the signing key"},
	    assuan.SetPrompt{Text: "PIN:"},
	    assuan.GetPin{},
	})
	if err != nil {
	    log.Fatal(err)
	}

	switch r := resp.(type) {
	case assuan.Pin:
	    defer r.Secret.Wipe()
	    use(r.Secret.Unsecure())
	case assuan.NotOK:
	    if code, _, ok := r.Err(); ok && code.IsCanceled() {
	        fmt.Println("cancelled")
	    }
	}
*/
package assuan
