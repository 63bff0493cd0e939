package seed

import (
	"log"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"pharmafind/m/domain"
)

// LoadDemoData installs the demo fixture on an empty database: one pharmacy
// owner with a stocked pharmacy and one customer account. A database that
// already has users is left untouched.
func LoadDemoData(db *sqlx.DB) {
	var count int
	if err := db.Get(&count, `SELECT COUNT(*) FROM users`); err != nil {
		log.Printf("unable to check for existing users: %v", err)
		return
	}
	if count > 0 {
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("unable to hash demo password: %v", err)
		return
	}

	tx, err := db.Beginx()
	if err != nil {
		log.Printf("unable to start seed transaction: %v", err)
		return
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO users (email, password_hash, role) VALUES (?, ?, ?)`,
		"owner@pharmacy.com", string(hash), domain.RolePharmacyOwner)
	if err != nil {
		log.Printf("unable to seed owner account: %v", err)
		return
	}
	ownerID, err := res.LastInsertId()
	if err != nil {
		log.Printf("unable to read owner id: %v", err)
		return
	}

	res, err = tx.Exec(`INSERT INTO pharmacies (user_id, name, address, lat, lng, phone) VALUES (?, ?, ?, ?, ?, ?)`,
		ownerID, "City Pharmacy", "123 Main St", 24.7136, 46.6753, "0501234567")
	if err != nil {
		log.Printf("unable to seed pharmacy: %v", err)
		return
	}
	pharmacyID, err := res.LastInsertId()
	if err != nil {
		log.Printf("unable to read pharmacy id: %v", err)
		return
	}

	medicines := []struct {
		name        string
		description string
		price       float64
		available   bool
	}{
		{"Panadol", "Pain reliever", 15.50, true},
		{"Aspirin", "Blood thinner", 20.00, true},
		{"Vitamin C", "Immunity booster", 35.00, false},
	}

	stmt, err := tx.Preparex(`INSERT INTO medicines (pharmacy_id, name, description, price, is_available) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		log.Printf("unable to prepare medicine insert: %v", err)
		return
	}
	defer stmt.Close()

	for _, m := range medicines {
		if _, err := stmt.Exec(pharmacyID, m.name, m.description, m.price, m.available); err != nil {
			log.Printf("unable to seed medicine %s: %v", m.name, err)
			return
		}
	}

	if _, err := tx.Exec(`INSERT INTO users (email, password_hash, role) VALUES (?, ?, ?)`,
		"customer@gmail.com", string(hash), domain.RoleCustomer); err != nil {
		log.Printf("unable to seed customer account: %v", err)
		return
	}

	if err := tx.Commit(); err != nil {
		log.Printf("unable to commit demo seed: %v", err)
		return
	}
	log.Printf("seeded demo pharmacy and accounts")
}
