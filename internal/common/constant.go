package common

// AccessTokenHeaderName is the HTTP header used to carry the access token on
// authenticated API requests.
const AccessTokenHeaderName = "Authorization"

// SharePasswordHeaderName carries the share password on unauthenticated
// share-download requests when it is not posted as a form value.
const SharePasswordHeaderName = "X-Share-Password"

// ShareTokenBytes is the number of random bytes behind a share token.
// Hex-encoded this yields the 32-character tokens the share URLs embed.
const ShareTokenBytes = 16

// StorageKeyPrefixBytes is the number of random bytes prefixed to a stored
// file's name so storage paths stay unguessable and collision-free.
const StorageKeyPrefixBytes = 16
