/*
Package authsdk provides a client SDK for the Spendlyzer auth service,
plus the wire types and error envelope the service's HTTP handlers share
with it.

# SDKClient vs Session

The package is organized around two main types:

  - SDKClient: unauthenticated operations (signup, signin, health, JWKS)
  - Session: authenticated operations against one signed-in session

Create an SDKClient to reach public endpoints and sign in:

	client := authsdk.NewSDKClient("https://auth.spendlyzer.example")

	user, err := client.Signup(ctx, authsdk.SignupRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "correct-horse-battery",
	})

	session, pending, err := client.Signin(ctx, authsdk.SigninRequest{
		Login:    "alice",
		Password: "correct-horse-battery",
	})

# Second-factor challenges

When the account has a second factor enabled, Signin returns a
PendingChallenge instead of a Session. Complete it with the code the
user provides:

	session, pending, err := client.Signin(ctx, req)
	if err != nil {
		return err
	}
	if pending != nil {
		// Code was already dispatched for sms/email; resend with
		// pending.SendCode(ctx) if it never arrived.
		session, err = pending.Verify(ctx, userCode, true)
		if err != nil {
			return err
		}
		// Persist session.DeviceToken() to skip the second factor on
		// the next signin from this device.
	}

Pass a stored device token on the next signin:

	session, pending, err := client.Signin(ctx, authsdk.SigninRequest{
		Login:       "alice",
		Password:    "correct-horse-battery",
		DeviceToken: storedToken,
	})

# Error Handling

Non-2xx responses surface as typed errors:

  - *APIError: the standard error envelope, carrying the HTTP status and
    a machine-readable code such as "invalid_code" or "too_many_attempts"
  - *ChallengeRequiredError: the 409 challenge handoff (Signin converts
    this into a PendingChallenge; other callers may see it raw)

# Thread Safety

A Session holds immutable token state and is safe for concurrent use.
*/
package authsdk
