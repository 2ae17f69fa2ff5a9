package directory

import "golang.org/x/crypto/bcrypt"

// HashPassword hashes a plaintext password using bcrypt. Empty passwords are
// permitted; some seeded accounts deliberately carry one.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares a plaintext password with the stored hash.
func VerifyPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
