/*
Package card verifies a PIN against a smart card according to ISO/IEC 7816-4.

It is the consumer side of package pinentry: the PIN collected from the user is handed over as a *secure.Secret, sent in a VERIFY command, and the encoded APDU buffer is zeroed right after transmission.

# Status Words

The outcome of VERIFY is read from the final Status Word:
  - 0x9000: PIN verified.
  - 0x63CX: wrong PIN, X tries left.
  - 0x6983: PIN blocked.

# Usage Example

	client := card.NewClient(scardCard)

	if err := client.SelectApplication(card.OpenPGPAID); err != nil {
	    log.Fatal(err)
	}

	name, _ := client.CardholderName()
	status, _ := client.RetriesLeft(card.RefPW1)

	pin, err := pinentry.New(
	    pinentry.WithDescription(fmt.Sprintf("Unlock the card of %s (%d tries left)", name, status.RetriesLeft)),
	).GetPin(ctx, "PIN:")
	if err != nil {
	    log.Fatal(err)
	}
	defer pin.Wipe()

	res, err := client.Verify(card.RefPW1, pin)
	if err != nil {
	    log.Fatal(err)
	}
	fmt.Println(res.Describe())
*/
package card
