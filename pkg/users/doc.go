// Package users handles registration and login.
//
// Passwords are stored as bcrypt hashes. A successful login returns an HS256
// token whose permissions claim holds the permissions of the user's roles at
// login time.
package users
